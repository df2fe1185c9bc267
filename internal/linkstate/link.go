// Package linkstate implements the link-state reconciliation engine of
// spec.md §4.3 (C3): it ingests kernel network-interface events over
// netlink, builds versioned immutable LinkTable snapshots, and hands them
// to consumers under reference counting.
package linkstate

// BondMode enumerates the bond operating modes the engine distinguishes,
// per spec §3's Link data model.
type BondMode int

const (
	BondModeNone BondMode = iota
	BondModeActiveBackup
	BondModeLACP
	BondModeUnsupported
)

// Kind classifies an interface's role/composition, per spec §3.
type Kind int

const (
	KindOther Kind = iota
	KindVLAN
	KindMACVLAN
	KindTeam
	KindBond
	KindBridge
	KindTunnel
	KindDummy
)

// TimestampingCaps is a bitmask of SO_TIMESTAMPING-family capabilities
// reported by ethtool TSINFO, per spec §3/§4.3.
type TimestampingCaps uint32

const (
	TimestampingCapsSoftwareTx TimestampingCaps = 1 << iota
	TimestampingCapsSoftwareRx
	TimestampingCapsHardwareTx
	TimestampingCapsHardwareRx
	TimestampingCapsRawHardware
)

// Link is a kernel network-interface record, per spec §3.
type Link struct { //nolint:govet // field order follows the spec's listing, not alignment
	Index        int32
	Name         string
	IfType       uint16
	Flags        uint32
	Family       uint8
	Kind         Kind
	MasterIndex  int32 // 0 if none
	ActiveSlave  int32 // 0 if none (bond active-slave index)
	BondMode     BondMode
	VLANID       uint16  // 0 if not a VLAN
	PermanentMAC [6]byte
	PHCIndex     int32 // -1 if none
	TSCaps       TimestampingCaps
	Slave        bool // set by any indicator: explicit flag or non-zero MasterIndex
}

// Running reports the kernel RUNNING flag, the only flag bit the engine
// treats as "significant" for change detection (spec §4.3).
func (l *Link) Running() bool { return l.Flags&linkFlagRunning != 0 }

const linkFlagRunning = 0x40 // IFF_RUNNING

// significantlyDiffers reports whether b differs from a in a way spec §4.3
// classifies as a change: "kind, if-type, family, significant flags
// (currently: RUNNING), master index, bond mode, active slave, slave flag,
// VLAN id, name, PHC index."
func significantlyDiffers(a, b *Link) bool {
	return a.Kind != b.Kind ||
		a.IfType != b.IfType ||
		a.Family != b.Family ||
		a.Running() != b.Running() ||
		a.MasterIndex != b.MasterIndex ||
		a.BondMode != b.BondMode ||
		a.ActiveSlave != b.ActiveSlave ||
		a.Slave != b.Slave ||
		a.VLANID != b.VLANID ||
		a.Name != b.Name ||
		a.PHCIndex != b.PHCIndex
}

// deriveSlave applies spec §4.3's rule: "Any indicator (explicit flag or
// non-zero master index) sets the slave boolean."
func deriveSlave(l *Link, explicitFlag bool) bool {
	return explicitFlag || l.MasterIndex != 0
}
