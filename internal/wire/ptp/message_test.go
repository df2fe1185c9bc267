package ptp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePortIdentity() PortIdentity {
	return PortIdentity{ClockIdentity: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, PortNumber: 1}
}

func sampleHeader(t MessageType) Header {
	h := Header{
		VersionPTP:         2,
		MessageLength:      44,
		DomainNumber:       0,
		FlagField:          0x0008,
		CorrectionField:    123456,
		SourcePortIdentity: samplePortIdentity(),
		SequenceID:         42,
		ControlField:       0,
		LogMessageInterval: -3,
	}
	h.SetType(t)
	return h
}

// TestTimestampRoundTrip exercises spec §8's testable property: for every
// well-formed internal timespec in range, encode then decode yields the
// same value.
func TestTimestampRoundTrip(t *testing.T) {
	cases := []Timestamp{
		{SecondsHigh: 0, SecondsLow: 0, Nanoseconds: 0},
		{SecondsHigh: 0, SecondsLow: 1700000000, Nanoseconds: 999999999},
		{SecondsHigh: 0xFFFF, SecondsLow: 0xFFFFFFFF, Nanoseconds: 0x3B9AC9FF},
	}
	for _, want := range cases {
		data, err := Encode(&want)
		require.NoError(t, err)

		var got Timestamp
		require.NoError(t, Decode(data, &got))
		require.Equal(t, want, got)
	}
}

func TestHeaderTypeRoundTrip(t *testing.T) {
	h := Header{}
	h.SetType(MessageAnnounce)
	require.Equal(t, MessageAnnounce, h.Type())

	h.SetType(MessageDelayResp)
	require.Equal(t, MessageDelayResp, h.Type())
}

func TestSyncRoundTrip(t *testing.T) {
	want := Sync{timestampBody{Header: sampleHeader(MessageSync), Timestamp: Timestamp{SecondsLow: 100, Nanoseconds: 500}}}

	data, err := Encode(&want)
	require.NoError(t, err)

	var got Sync
	require.NoError(t, Decode(data, &got))
	require.Equal(t, want, got)

	typ, err := PeekType(data)
	require.NoError(t, err)
	require.Equal(t, MessageSync, typ)
}

func TestAnnounceRoundTrip(t *testing.T) {
	want := Announce{
		Header:               sampleHeader(MessageAnnounce),
		OriginTimestamp:      Timestamp{SecondsLow: 5, Nanoseconds: 6},
		CurrentUTCOffset:     37,
		GrandmasterPriority1: 128,
		GrandmasterClockQuality: ClockQuality{
			ClockClass:              6,
			ClockAccuracy:           0x20,
			OffsetScaledLogVariance: 0x4E5D,
		},
		GrandmasterPriority2: 128,
		GrandmasterIdentity:  [8]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22},
		StepsRemoved:         1,
		TimeSource:           0xA0,
	}

	data, err := Encode(&want)
	require.NoError(t, err)

	var got Announce
	require.NoError(t, Decode(data, &got))
	require.Equal(t, want, got)
}

func TestDelayRespRoundTrip(t *testing.T) {
	want := DelayResp{
		Header:                 sampleHeader(MessageDelayResp),
		ReceiveTimestamp:       Timestamp{SecondsLow: 9, Nanoseconds: 10},
		RequestingPortIdentity: samplePortIdentity(),
	}

	data, err := Encode(&want)
	require.NoError(t, err)

	var got DelayResp
	require.NoError(t, Decode(data, &got))
	require.Equal(t, want, got)
}

func TestTLVEncodeDecodeRoundTrip(t *testing.T) {
	orig := TLV{Type: TLVOrganizationExtension, Value: []byte{1, 2, 3}}

	encoded := orig.Encode()
	// 3-byte value gets padded to 4.
	require.Len(t, encoded, 4+4)

	decoded, err := DecodeTLVs(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, orig.Type, decoded[0].Type)
	require.Equal(t, []byte{1, 2, 3, 0}, decoded[0].Value)
}

func TestVendorMTIETLVRoundTrip(t *testing.T) {
	want := VendorMTIETLV{WindowLog2: 4, MTIENanos: 123456789}

	tlv, err := EncodeVendorMTIE(want)
	require.NoError(t, err)
	require.Equal(t, TLVVendorMTIE, tlv.Type)

	got, err := DecodeVendorMTIE(tlv)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestVendorSlaveStatusTLVRoundTrip(t *testing.T) {
	want := VendorSlaveStatusTLV{
		State:              7,
		AlarmBitmask:       0x02,
		OffsetFromMasterNs: -4200,
		StepsRemoved:       2,
		UserPriority:       128,
	}

	tlv, err := EncodeVendorSlaveStatus(want)
	require.NoError(t, err)
	require.Equal(t, TLVVendorSlaveStatus, tlv.Type)

	got, err := DecodeVendorSlaveStatus(tlv)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSignalingRoundTripWithTLVs(t *testing.T) {
	mtieTLV, err := EncodeVendorMTIE(VendorMTIETLV{WindowLog2: 2, MTIENanos: 999})
	require.NoError(t, err)

	want := &Signaling{
		Header:             sampleHeader(MessageSignaling),
		TargetPortIdentity: samplePortIdentity(),
		TLVs:               []TLV{mtieTLV},
	}

	data, err := EncodeSignaling(want)
	require.NoError(t, err)

	got, err := DecodeSignaling(data)
	require.NoError(t, err)
	require.Equal(t, want.Header, got.Header)
	require.Equal(t, want.TargetPortIdentity, got.TargetPortIdentity)
	require.Len(t, got.TLVs, 1)

	decodedMTIE, err := DecodeVendorMTIE(got.TLVs[0])
	require.NoError(t, err)
	require.Equal(t, VendorMTIETLV{WindowLog2: 2, MTIENanos: 999}, decodedMTIE)
}

func TestManagementRoundTripWithTLVs(t *testing.T) {
	statusTLV, err := EncodeVendorSlaveStatus(VendorSlaveStatusTLV{State: 7, AlarmBitmask: 1})
	require.NoError(t, err)

	want := &Management{
		Header:               sampleHeader(MessageManagement),
		TargetPortIdentity:   samplePortIdentity(),
		StartingBoundaryHops: 1,
		BoundaryHops:         1,
		ActionField:          ManagementGet,
		TLVs:                 []TLV{statusTLV},
	}

	data, err := EncodeManagement(want)
	require.NoError(t, err)

	got, err := DecodeManagement(data)
	require.NoError(t, err)
	require.Equal(t, want.Header, got.Header)
	require.Equal(t, want.TargetPortIdentity, got.TargetPortIdentity)
	require.Equal(t, want.ActionField, got.ActionField)
	require.Len(t, got.TLVs, 1)
}

func TestPeekTypeRejectsEmpty(t *testing.T) {
	_, err := PeekType(nil)
	require.Error(t, err)
}
