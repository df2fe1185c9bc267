package ptp

import (
	"bytes"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/wire/ptp"
)

// foreignMasterEntry tracks one ANNOUNCE source (spec §4.6.1's foreign-
// master data set).
type foreignMasterEntry struct {
	portIdentity ptp.PortIdentity
	lastHeard    time.Time
	grandmaster  syncmodule.GrandmasterDescriptor
	priority1    uint8
	priority2    uint8
}

// foreignMasterSet is a bounded set of foreignMasterEntry, keyed by the
// sending port's identity, with LRU eviction among entries older than the
// announce receipt timeout (spec §4.6.1).
type foreignMasterSet struct {
	cap     int
	timeout time.Duration

	order   []ptp.PortIdentity // most-recently-heard last
	entries map[ptp.PortIdentity]*foreignMasterEntry
}

// newForeignMasterSet constructs a set bounded to capacity entries, with
// timeout governing both staleness eviction and LRU-eviction eligibility.
func newForeignMasterSet(capacity int, timeout time.Duration) *foreignMasterSet {
	return &foreignMasterSet{
		cap:     capacity,
		timeout: timeout,
		entries: make(map[ptp.PortIdentity]*foreignMasterEntry),
	}
}

// Observe records an ANNOUNCE from source, received at now. If the set is
// at capacity and source is new, the least-recently-heard entry older
// than the announce receipt timeout is evicted to make room; if no entry
// qualifies for eviction, the new source is dropped (spec §4.6.1: "LRU
// among entries older than the announce receipt timeout" implies nothing
// is evicted while every existing entry is still fresh).
func (s *foreignMasterSet) Observe(source ptp.PortIdentity, now time.Time, gm syncmodule.GrandmasterDescriptor, priority1, priority2 uint8) bool {
	if e, ok := s.entries[source]; ok {
		e.lastHeard = now
		e.grandmaster = gm
		e.priority1 = priority1
		e.priority2 = priority2
		s.touch(source)
		return true
	}

	if len(s.entries) >= s.cap {
		if !s.evictOneStale(now) {
			return false
		}
	}

	s.entries[source] = &foreignMasterEntry{
		portIdentity: source,
		lastHeard:    now,
		grandmaster:  gm,
		priority1:    priority1,
		priority2:    priority2,
	}
	s.order = append(s.order, source)
	return true
}

// touch moves source to the most-recently-heard end of the LRU order.
func (s *foreignMasterSet) touch(source ptp.PortIdentity) {
	for i, pid := range s.order {
		if pid == source {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, source)
}

// evictOneStale removes the least-recently-heard entry whose lastHeard is
// older than timeout, returning whether an eviction happened.
func (s *foreignMasterSet) evictOneStale(now time.Time) bool {
	for i, pid := range s.order {
		e := s.entries[pid]
		if now.Sub(e.lastHeard) >= s.timeout {
			s.order = append(s.order[:i], s.order[i+1:]...)
			delete(s.entries, pid)
			return true
		}
	}
	return false
}

// ExpireStale drops every entry older than the announce receipt timeout,
// called periodically by Port's timer tick.
func (s *foreignMasterSet) ExpireStale(now time.Time) {
	var kept []ptp.PortIdentity
	for _, pid := range s.order {
		e := s.entries[pid]
		if now.Sub(e.lastHeard) < s.timeout {
			kept = append(kept, pid)
			continue
		}
		delete(s.entries, pid)
	}
	s.order = kept
}

// Len returns the current number of tracked foreign masters.
func (s *foreignMasterSet) Len() int { return len(s.entries) }

// Best runs a simplified best-master-clock comparison (priority1, clock
// class, accuracy, variance, priority2, identity) over the tracked
// entries, returning the winner and whether any entry exists.
func (s *foreignMasterSet) Best() (*foreignMasterEntry, bool) {
	var best *foreignMasterEntry
	for _, pid := range s.order {
		e := s.entries[pid]
		if best == nil || bmcaLess(e, best) {
			best = e
		}
	}
	return best, best != nil
}

func bmcaLess(a, b *foreignMasterEntry) bool {
	if a.priority1 != b.priority1 {
		return a.priority1 < b.priority1
	}
	if a.grandmaster.ClockClass != b.grandmaster.ClockClass {
		return a.grandmaster.ClockClass < b.grandmaster.ClockClass
	}
	if a.grandmaster.ClockAccuracy != b.grandmaster.ClockAccuracy {
		return a.grandmaster.ClockAccuracy < b.grandmaster.ClockAccuracy
	}
	if a.grandmaster.OffsetScaledLogVariance != b.grandmaster.OffsetScaledLogVariance {
		return a.grandmaster.OffsetScaledLogVariance < b.grandmaster.OffsetScaledLogVariance
	}
	if a.priority2 != b.priority2 {
		return a.priority2 < b.priority2
	}
	return bytes.Compare(a.grandmaster.ClockIdentity[:], b.grandmaster.ClockIdentity[:]) < 0
}
