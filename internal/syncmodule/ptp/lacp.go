package ptp

import "fmt"

// auxSocketsPerMember is the number of auxiliary sockets opened per bond
// physical member (spec §4.6.1: "four auxiliary sockets per physical
// member").
const auxSocketsPerMember = 4

// maxAuxSockets is the hard cap on total auxiliary sockets regardless of
// bond size (spec §4.6.1: "bounded to 64 total").
const maxAuxSockets = 64

// InvalidReason records why an auxiliary socket was marked invalid.
type InvalidReason int

const (
	InvalidReasonNone InvalidReason = iota
	InvalidReasonBindFailed
	InvalidReasonProbeFailed
	InvalidReasonMemberRemoved
)

// auxSocket is one transmit-side bypass socket bound to a bond member.
type auxSocket struct {
	memberIndex int32 // ifindex of the bond member this socket is bound to
	ifindex     int32 // kernel-reported transmit ifindex, from the probe
	reason      InvalidReason
	fd          int // -1 if not open
}

// lacpBypass manages the LACP bond transmit-side bypass socket pool (spec
// §4.6.1): a bounded set of auxiliary sockets, a 64-bit validity mask, and
// a per-socket invalidation reason, with re-detection triggered on bond
// composition changes.
type lacpBypass struct {
	bondIndex int32
	members   []int32 // physical member ifindexes
	sockets   []auxSocket
	validMask uint64

	// open is the socket-opening/binding primitive; swappable in tests.
	open func(memberIndex int32) (fd int, err error)
	// probe discovers, for an open socket, the kernel's per-socket
	// transmit interface index, by sending an empty multicast datagram
	// (spec §4.6.1).
	probe func(fd int) (ifindex int32, err error)
}

// newLACPBypass constructs a bypass pool for bondIndex with the given
// physical members.
func newLACPBypass(bondIndex int32, members []int32, open func(int32) (int, error), probe func(int) (int32, error)) *lacpBypass {
	return &lacpBypass{bondIndex: bondIndex, members: members, open: open, probe: probe}
}

// Rebuild tears down the current socket set and opens auxSocketsPerMember
// sockets per member, up to maxAuxSockets total, probing each for its
// transmit ifindex. newLACPBypass does not call it, so callers invoke it
// after construction; OnCompositionChange calls it whenever bond
// composition changes (spec §4.6.1: "re-detection is triggered on bond
// composition changes").
func (l *lacpBypass) Rebuild() error {
	l.closeAll()

	total := len(l.members) * auxSocketsPerMember
	if total > maxAuxSockets {
		total = maxAuxSockets
	}

	l.sockets = make([]auxSocket, 0, total)
	l.validMask = 0

	for _, member := range l.members {
		for i := 0; i < auxSocketsPerMember && len(l.sockets) < maxAuxSockets; i++ {
			sock := auxSocket{memberIndex: member, fd: -1}

			fd, err := l.open(member)
			if err != nil {
				sock.reason = InvalidReasonBindFailed
				l.sockets = append(l.sockets, sock)
				continue
			}
			sock.fd = fd

			ifindex, err := l.probe(fd)
			if err != nil {
				sock.reason = InvalidReasonProbeFailed
				l.sockets = append(l.sockets, sock)
				continue
			}
			sock.ifindex = ifindex

			idx := len(l.sockets)
			l.sockets = append(l.sockets, sock)
			if idx < 64 {
				l.validMask |= 1 << uint(idx)
			}
		}
	}
	return nil
}

// closeAll invalidates every currently tracked socket by forgetting it.
// It does not close the sockets' fds; that is left to whoever supplied
// the open function.
func (l *lacpBypass) closeAll() {
	l.sockets = nil
	l.validMask = 0
}

// Valid reports whether the socket at index is currently usable.
func (l *lacpBypass) Valid(index int) bool {
	if index < 0 || index >= 64 {
		return false
	}
	return l.validMask&(1<<uint(index)) != 0
}

// Invalidate marks the socket at index unusable with the given reason.
func (l *lacpBypass) Invalidate(index int, reason InvalidReason) error {
	if index < 0 || index >= len(l.sockets) {
		return fmt.Errorf("ptp: lacp bypass: invalid socket index %d", index)
	}
	l.sockets[index].reason = reason
	if index < 64 {
		l.validMask &^= 1 << uint(index)
	}
	return nil
}

// ValidCount returns the number of currently usable sockets.
func (l *lacpBypass) ValidCount() int {
	n := 0
	for i := 0; i < len(l.sockets) && i < 64; i++ {
		if l.validMask&(1<<uint(i)) != 0 {
			n++
		}
	}
	return n
}

// OnCompositionChange replaces the member set and rebuilds the pool if it
// actually changed.
func (l *lacpBypass) OnCompositionChange(members []int32) error {
	if equalInt32s(l.members, members) {
		return nil
	}
	l.members = members
	return l.Rebuild()
}

func equalInt32s(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
