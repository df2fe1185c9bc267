package ptp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TLVType identifies a PTP TLV's purpose (IEEE 1588 §14.1, plus the
// daemon's own vendor-extension types in the experimental range).
type TLVType uint16

const (
	TLVOrganizationExtension TLVType = 0x0003

	// TLVVendorMTIE and TLVVendorSlaveStatus are supplemented vendor TLVs
	// (spec.md's distillation doesn't mention a wire encoding for MTIE or
	// slave-status; this module's SPEC_FULL.md expansion adds them so the
	// servo's MTIE accumulator and a sync-module's status can be carried
	// end-to-end over Signaling messages to a monitoring peer).
	TLVVendorMTIE        TLVType = 0x8000
	TLVVendorSlaveStatus TLVType = 0x8001
)

// TLV is one type-length-value record appended to a Signaling or
// Management message.
type TLV struct {
	Type   TLVType
	Length uint16
	Value  []byte
}

// Encode serializes t as wire bytes: 2-byte type, 2-byte length, value,
// zero-padded to an even length (IEEE 1588 §14.1: "TLVs shall be an even
// number of octets in length").
func (t *TLV) Encode() []byte {
	padded := len(t.Value)
	if padded%2 != 0 {
		padded++
	}
	buf := make([]byte, 4+padded)
	binary.BigEndian.PutUint16(buf[0:2], uint16(t.Type))
	binary.BigEndian.PutUint16(buf[2:4], uint16(padded))
	copy(buf[4:], t.Value)
	return buf
}

// DecodeTLVs walks a sequence of back-to-back TLV records.
func DecodeTLVs(data []byte) ([]TLV, error) {
	var tlvs []TLV
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("ptp: truncated TLV header")
		}
		typ := TLVType(binary.BigEndian.Uint16(data[0:2]))
		length := binary.BigEndian.Uint16(data[2:4])
		if int(length) > len(data)-4 {
			return nil, fmt.Errorf("ptp: TLV length %d exceeds remaining %d bytes", length, len(data)-4)
		}
		tlvs = append(tlvs, TLV{Type: typ, Length: length, Value: data[4 : 4+length]})
		data = data[4+length:]
	}
	return tlvs, nil
}

// VendorMTIETLV encodes a single MTIE window-class observation for
// transmission: window size in samples (log2), and the MTIE value in
// nanoseconds.
type VendorMTIETLV struct {
	WindowLog2 uint8
	_          [3]byte // padding to a 4-byte aligned field
	MTIENanos  int64
}

// EncodeVendorMTIE wraps a VendorMTIETLV as a generic TLV.
func EncodeVendorMTIE(v VendorMTIETLV) (TLV, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
		return TLV{}, fmt.Errorf("ptp: encode vendor MTIE TLV: %w", err)
	}
	return TLV{Type: TLVVendorMTIE, Value: buf.Bytes()}, nil
}

// DecodeVendorMTIE unwraps a VendorMTIETLV previously built by
// EncodeVendorMTIE.
func DecodeVendorMTIE(t TLV) (VendorMTIETLV, error) {
	var v VendorMTIETLV
	if err := binary.Read(bytes.NewReader(t.Value), binary.BigEndian, &v); err != nil {
		return v, fmt.Errorf("ptp: decode vendor MTIE TLV: %w", err)
	}
	return v, nil
}

// VendorSlaveStatusTLV carries a compact summary of a sync-module's
// status (spec §4.6's status surface), for a monitoring peer that
// receives it over a Signaling message rather than querying the control
// socket.
type VendorSlaveStatusTLV struct {
	State             uint8
	AlarmBitmask      uint32
	OffsetFromMasterNs int64
	StepsRemoved       uint16
	UserPriority       uint8
}

// EncodeVendorSlaveStatus wraps a VendorSlaveStatusTLV as a generic TLV.
func EncodeVendorSlaveStatus(v VendorSlaveStatusTLV) (TLV, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
		return TLV{}, fmt.Errorf("ptp: encode vendor slave-status TLV: %w", err)
	}
	return TLV{Type: TLVVendorSlaveStatus, Value: buf.Bytes()}, nil
}

// DecodeVendorSlaveStatus unwraps a VendorSlaveStatusTLV previously built
// by EncodeVendorSlaveStatus.
func DecodeVendorSlaveStatus(t TLV) (VendorSlaveStatusTLV, error) {
	var v VendorSlaveStatusTLV
	if err := binary.Read(bytes.NewReader(t.Value), binary.BigEndian, &v); err != nil {
		return v, fmt.Errorf("ptp: decode vendor slave-status TLV: %w", err)
	}
	return v, nil
}

// Signaling carries a target port identity followed by a sequence of TLVs.
type Signaling struct {
	Header
	TargetPortIdentity PortIdentity
	TLVs               []TLV
}

// EncodeSignaling serializes a Signaling message: fixed header+target,
// then each TLV's bytes appended in order.
func EncodeSignaling(s *Signaling) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, s.Header); err != nil {
		return nil, fmt.Errorf("ptp: encode signaling header: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, s.TargetPortIdentity); err != nil {
		return nil, fmt.Errorf("ptp: encode signaling target: %w", err)
	}
	for _, t := range s.TLVs {
		buf.Write(t.Encode())
	}
	return buf.Bytes(), nil
}

// DecodeSignaling parses a Signaling message's fixed portion and its TLVs.
func DecodeSignaling(data []byte) (*Signaling, error) {
	fixedLen := binary.Size(Header{}) + binary.Size(PortIdentity{})
	if len(data) < fixedLen {
		return nil, fmt.Errorf("ptp: short signaling message")
	}
	s := &Signaling{}
	r := bytes.NewReader(data[:fixedLen])
	if err := binary.Read(r, binary.BigEndian, &s.Header); err != nil {
		return nil, fmt.Errorf("ptp: decode signaling header: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &s.TargetPortIdentity); err != nil {
		return nil, fmt.Errorf("ptp: decode signaling target: %w", err)
	}
	tlvs, err := DecodeTLVs(data[fixedLen:])
	if err != nil {
		return nil, err
	}
	s.TLVs = tlvs
	return s, nil
}

// ManagementAction distinguishes a management message's intent (IEEE 1588
// §15.4): GET, SET, a RESPONSE to one, a COMMAND, or an ACKNOWLEDGE.
type ManagementAction uint8

const (
	ManagementGet ManagementAction = iota
	ManagementSet
	ManagementResponse
	ManagementCommand
	ManagementAcknowledge
)

// Management carries a management-TLV request or response, addressed to a
// specific target port, with a boundary-hop count the standard uses to
// limit propagation through a PTP boundary-clock hierarchy.
type Management struct {
	Header
	TargetPortIdentity  PortIdentity
	StartingBoundaryHops uint8
	BoundaryHops         uint8
	ActionField          ManagementAction
	Reserved             uint8
	TLVs                 []TLV
}

// EncodeManagement serializes a Management message: fixed header+target+
// hop fields, then each TLV's bytes appended in order.
func EncodeManagement(m *Management) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, m.Header); err != nil {
		return nil, fmt.Errorf("ptp: encode management header: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, m.TargetPortIdentity); err != nil {
		return nil, fmt.Errorf("ptp: encode management target: %w", err)
	}
	fixed := struct {
		StartingBoundaryHops uint8
		BoundaryHops         uint8
		ActionField          uint8
		Reserved             uint8
	}{m.StartingBoundaryHops, m.BoundaryHops, uint8(m.ActionField), m.Reserved}
	if err := binary.Write(&buf, binary.BigEndian, fixed); err != nil {
		return nil, fmt.Errorf("ptp: encode management hop fields: %w", err)
	}
	for _, t := range m.TLVs {
		buf.Write(t.Encode())
	}
	return buf.Bytes(), nil
}

// DecodeManagement parses a Management message's fixed portion and its TLVs.
func DecodeManagement(data []byte) (*Management, error) {
	fixedLen := binary.Size(Header{}) + binary.Size(PortIdentity{}) + 4
	if len(data) < fixedLen {
		return nil, fmt.Errorf("ptp: short management message")
	}
	m := &Management{}
	r := bytes.NewReader(data[:fixedLen])
	if err := binary.Read(r, binary.BigEndian, &m.Header); err != nil {
		return nil, fmt.Errorf("ptp: decode management header: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &m.TargetPortIdentity); err != nil {
		return nil, fmt.Errorf("ptp: decode management target: %w", err)
	}
	var fixed struct {
		StartingBoundaryHops uint8
		BoundaryHops         uint8
		ActionField          uint8
		Reserved             uint8
	}
	if err := binary.Read(r, binary.BigEndian, &fixed); err != nil {
		return nil, fmt.Errorf("ptp: decode management hop fields: %w", err)
	}
	m.StartingBoundaryHops = fixed.StartingBoundaryHops
	m.BoundaryHops = fixed.BoundaryHops
	m.ActionField = ManagementAction(fixed.ActionField)
	m.Reserved = fixed.Reserved

	tlvs, err := DecodeTLVs(data[fixedLen:])
	if err != nil {
		return nil, err
	}
	m.TLVs = tlvs
	return m, nil
}
