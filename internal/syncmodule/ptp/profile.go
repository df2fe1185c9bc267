package ptp

// Profile indexes a profile descriptor governing transport capability and
// BMCA tie-breaking details (spec §4.6.1).
type Profile int

const (
	ProfileDefaultE2E Profile = iota
	ProfileDefaultP2P
	ProfileEnterprise
)

// DelayMechanism distinguishes end-to-end from peer-to-peer path-delay
// measurement (spec §4.6.1: "DELAY_REQ/DELAY_RESP (E2E) or PDELAY_REQ/
// PDELAY_RESP(/FOLLOW_UP) (P2P)").
type DelayMechanism int

const (
	DelayMechanismE2E DelayMechanism = iota
	DelayMechanismP2P
)

// ProfileDescriptor captures the capabilities and tie-break behavior a
// Profile selects.
type ProfileDescriptor struct {
	DelayMechanism  DelayMechanism
	MulticastOnly   bool
	UnicastCapable  bool
	DomainNumber    uint8
	AnnounceTimeout int // announce intervals before a foreign master is stale
}

// profileDescriptors is indexed by Profile.
var profileDescriptors = [...]ProfileDescriptor{
	ProfileDefaultE2E: {DelayMechanism: DelayMechanismE2E, MulticastOnly: true, DomainNumber: 0, AnnounceTimeout: 3},
	ProfileDefaultP2P: {DelayMechanism: DelayMechanismP2P, MulticastOnly: true, DomainNumber: 0, AnnounceTimeout: 3},
	ProfileEnterprise: {DelayMechanism: DelayMechanismE2E, MulticastOnly: false, UnicastCapable: true, DomainNumber: 0, AnnounceTimeout: 4},
}

// Descriptor returns p's descriptor.
func (p Profile) Descriptor() ProfileDescriptor { return profileDescriptors[p] }
