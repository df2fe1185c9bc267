// Package selector implements the C7 best-instance selector of spec.md
// §4.7: a deterministic comparator over sync-instance statuses, run once
// per selection interval by internal/engine.
package selector

import (
	"bytes"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

// Candidate is one named sync-instance's status as seen by the selector
// at a single tick.
type Candidate struct {
	Name   string
	Status syncmodule.SyncInstanceStatus
}

// Result is the selector's verdict for one tick.
type Result struct {
	// Index is the position of the elected candidate within the slice
	// passed to Select, or -1 if none qualified.
	Index int
	// Changed reports whether Index differs from the previous tick's
	// elected index (spec §4.7: "emits a change event only when the
	// elected index differs from the previous tick").
	Changed bool
	// Relaxed records which relaxation step, if any, produced the
	// result, for diagnostics/logging only.
	Relaxed RelaxationLevel
}

// RelaxationLevel records how far spec §4.7's fallback chain had to
// relax before it found a candidate.
type RelaxationLevel int

const (
	// RelaxationNone: an alarm-free SLAVE candidate won outright.
	RelaxationNone RelaxationLevel = iota
	// RelaxationIgnoreAlarms: no alarm-free SLAVE existed; alarm bits
	// were ignored and the best SLAVE (by the same tuple) was chosen.
	RelaxationIgnoreAlarms
	// RelaxationAnySlave: the tuple comparison still produced nothing
	// (should not normally differ from RelaxationIgnoreAlarms, but kept
	// distinct per spec wording "any SLAVE instance in priority order").
	RelaxationAnySlave
	// RelaxationNonSlave: no SLAVE candidate existed at all; the
	// highest-quality non-SLAVE instance was chosen.
	RelaxationNonSlave
	// RelaxationEmpty: no candidate qualified at all.
	RelaxationEmpty
)

// Selector holds the previous tick's elected index so it can detect
// change events, and an optional manual override.
type Selector struct {
	prevIndex int

	overrideSet  bool
	overrideName string
}

// New constructs a Selector with no prior selection and no override.
func New() *Selector {
	return &Selector{prevIndex: -1}
}

// SetOverride pins the selection to the named instance until cleared
// (spec §4.7: "Manual override takes precedence and pins the selection
// until cleared").
func (s *Selector) SetOverride(name string) {
	s.overrideSet = true
	s.overrideName = name
}

// ClearOverride removes a manual override, if one is set.
func (s *Selector) ClearOverride() {
	s.overrideSet = false
	s.overrideName = ""
}

// Select runs spec §4.7's deterministic rule over candidates and returns
// the elected index, relaxation level reached, and whether the election
// changed from the previous call. Candidates that compare equal on the
// whole ranking tuple resolve to the one that comes first in candidates.
func (s *Selector) Select(candidates []Candidate) Result {
	index := s.selectIndex(candidates)
	changed := index.idx != s.prevIndex
	s.prevIndex = index.idx

	return Result{Index: index.idx, Changed: changed, Relaxed: index.level}
}

type selection struct {
	idx   int
	level RelaxationLevel
}

func (s *Selector) selectIndex(candidates []Candidate) selection {
	if s.overrideSet {
		for i, c := range candidates {
			if c.Name == s.overrideName {
				return selection{idx: i, level: RelaxationNone}
			}
		}
		// Override names an instance not currently present; fall through
		// to the normal rule rather than electing nothing.
	}

	if idx, ok := bestSlaveIndex(candidates, true); ok {
		return selection{idx: idx, level: RelaxationNone}
	}
	if idx, ok := bestSlaveIndex(candidates, false); ok {
		return selection{idx: idx, level: RelaxationIgnoreAlarms}
	}
	if idx, ok := anySlaveIndex(candidates); ok {
		return selection{idx: idx, level: RelaxationAnySlave}
	}
	if idx, ok := bestNonSlaveIndex(candidates); ok {
		return selection{idx: idx, level: RelaxationNonSlave}
	}
	return selection{idx: -1, level: RelaxationEmpty}
}

// bestSlaveIndex finds the SLAVE candidate minimizing spec §4.7's tuple.
// When requireNoAlarms is true, candidates with any alarm bit set are
// excluded.
func bestSlaveIndex(candidates []Candidate, requireNoAlarms bool) (int, bool) {
	best := -1
	for i, c := range candidates {
		if c.Status.State != syncmodule.StateSlave {
			continue
		}
		if requireNoAlarms && c.Status.AlarmBitmask != 0 {
			continue
		}
		if best == -1 || less(c.Status, candidates[best].Status) {
			best = i
		}
	}
	return best, best != -1
}

// anySlaveIndex picks any SLAVE instance, in priority order (spec §4.7's
// third fallback step). In practice this coincides with bestSlaveIndex's
// alarm-ignoring pass, since the tuple already orders by priority first;
// it is kept as a distinct step to mirror the spec's wording and to give
// a distinguishable relaxation level for diagnostics.
func anySlaveIndex(candidates []Candidate) (int, bool) {
	return bestSlaveIndex(candidates, false)
}

// bestNonSlaveIndex picks the highest-quality non-SLAVE instance (spec
// §4.7's final fallback), comparing the same tuple minus the SLAVE-only
// gating.
func bestNonSlaveIndex(candidates []Candidate) (int, bool) {
	best := -1
	for i, c := range candidates {
		if c.Status.State == syncmodule.StateSlave {
			continue
		}
		if c.Status.State == syncmodule.StateFaulty || c.Status.State == syncmodule.StateDisabled {
			continue
		}
		if best == -1 || less(c.Status, candidates[best].Status) {
			best = i
		}
	}
	return best, best != -1
}

// less implements spec §4.7's tuple ordering: (user_priority, clock_class,
// accuracy, steps_removed, grandmaster_id) all ascending/lexicographic.
func less(a, b syncmodule.SyncInstanceStatus) bool {
	if a.UserPriority != b.UserPriority {
		return a.UserPriority < b.UserPriority
	}
	if a.Grandmaster.ClockClass != b.Grandmaster.ClockClass {
		return a.Grandmaster.ClockClass < b.Grandmaster.ClockClass
	}
	if a.Grandmaster.ClockAccuracy != b.Grandmaster.ClockAccuracy {
		return a.Grandmaster.ClockAccuracy < b.Grandmaster.ClockAccuracy
	}
	if a.Grandmaster.StepsRemoved != b.Grandmaster.StepsRemoved {
		return a.Grandmaster.StepsRemoved < b.Grandmaster.StepsRemoved
	}
	return bytes.Compare(a.Grandmaster.ClockIdentity[:], b.Grandmaster.ClockIdentity[:]) < 0
}
