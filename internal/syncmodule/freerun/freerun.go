// Package freerun implements the freerun sync-module variant of spec.md
// §4.6: selection of a local reference clock with no ongoing discipline.
package freerun

import (
	"fmt"
	"io"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

// rank is the (holdover, accuracy, stratum) tuple spec §4.6 ranks candidate
// PHCs by when traversing a bond/VLAN to an underlying clock. Lower is
// better in every field.
type rank struct {
	holdover time.Duration
	accuracy float64
	stratum  uint8
}

func (r rank) less(o rank) bool {
	if r.holdover != o.holdover {
		return r.holdover < o.holdover
	}
	if r.accuracy != o.accuracy {
		return r.accuracy < o.accuracy
	}
	return r.stratum < o.stratum
}

// candidate pairs a discovered clock with its ranking tuple.
type candidate struct {
	handle clockreg.Handle
	rank   rank
}

// estimateRank derives a rank for a link's PHC from its timestamping
// capability bits: hardware timestamping implies a far tighter holdover
// and accuracy bound than software-only.
func estimateRank(l *linkstate.Link) rank {
	if l.TSCaps&linkstate.TimestampingCapsHardwareRx != 0 {
		return rank{holdover: time.Minute, accuracy: 40, stratum: 2}
	}
	return rank{holdover: time.Hour, accuracy: 1_000_000, stratum: 4}
}

// selectBest performs the DFS spec §4.6 describes: starting from each
// link with a PHC in table, or from a named interface's underlying bond/
// VLAN master chain, pick the candidate with the best rank.
//
// named, when non-empty, restricts the search to the link with that name
// and the chain of masters/slaves it participates in; an empty named
// searches every link with a PHC.
func selectBest(table *linkstate.LinkTable, named string) (candidate, bool) {
	var best candidate
	found := false

	visit := func(l *linkstate.Link) {
		if l.PHCIndex < 0 {
			return
		}
		r := estimateRank(l)
		c := candidate{handle: clockreg.Handle(fmt.Sprintf("phc:%d", l.PHCIndex)), rank: r}
		if !found || c.rank.less(best.rank) {
			best = c
			found = true
		}
	}

	if named == "" {
		for i := range table.Rows {
			visit(&table.Rows[i])
		}
		return best, found
	}

	root := table.ByName(named)
	if root == nil {
		return candidate{}, false
	}
	visit(root)
	// Depth-first over the bond/VLAN composition the root participates
	// in: its master chain (the link(s) it is a slave of), and, for a
	// bond/team master, its slave links.
	seen := map[int32]bool{root.Index: true}
	queue := []int32{root.Index}
	for len(queue) > 0 {
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if cur := table.ByIndex(idx); cur != nil && cur.MasterIndex != 0 && !seen[cur.MasterIndex] {
			if m := table.ByIndex(cur.MasterIndex); m != nil {
				seen[m.Index] = true
				visit(m)
				queue = append(queue, m.Index)
			}
		}
		for i := range table.Rows {
			row := &table.Rows[i]
			if seen[row.Index] {
				continue
			}
			if row.MasterIndex == idx {
				seen[row.Index] = true
				visit(row)
				queue = append(queue, row.Index)
			}
		}
	}
	return best, found
}

// Module is the freerun sync-module instance.
type Module struct {
	syncmodule.Base

	registry *clockreg.Registry
	named    string // empty: search any PHC; otherwise a specific interface name
	priority uint8

	status syncmodule.SyncInstanceStatus
}

// New constructs a freerun module. named selects a specific interface's
// clock chain to search (spec §4.6: "a named hardware clock"); an empty
// string searches every discovered PHC for the best-ranked one.
func New(registry *clockreg.Registry, named string, priority uint8) *Module {
	return &Module{registry: registry, named: named, priority: priority}
}

// Select runs the DFS/ranking described in spec §4.6 against table and
// updates the module's reported status. ThreadedModule.OnStartup calls it
// once; the engine's hotplug rescan does not call it, and freerun makes no
// further adjustments afterward.
func (m *Module) Select(table *linkstate.LinkTable) error {
	best, ok := selectBest(table, m.named)
	if !ok {
		m.status = syncmodule.SyncInstanceStatus{
			State:              syncmodule.StateFaulty,
			ConfiguredPriority: m.priority,
			UserPriority:       m.priority,
		}
		return fmt.Errorf("freerun: no candidate clock found")
	}

	c, err := m.registry.FindByHandle(best.handle)
	if err != nil {
		return fmt.Errorf("freerun: %w", err)
	}

	m.status = syncmodule.SyncInstanceStatus{
		State:              syncmodule.StateSlave,
		ReferenceClock:     c.Handle,
		ConfiguredPriority: m.priority,
		UserPriority:       m.priority,
		LocalAccuracy:      best.rank.accuracy,
		Grandmaster: syncmodule.GrandmasterDescriptor{
			ClockClass:    248, // application-specific, per IEEE 1588's free-running class
			TimeSource:    syncmodule.TimeSourceInternalOsc,
			ClockAccuracy: 0xFE,
			StepsRemoved:  0,
		},
	}
	return nil
}

// GetStatus implements syncmodule.Instance.
func (m *Module) GetStatus() (syncmodule.SyncInstanceStatus, error) {
	status := m.status
	status.AlarmBitmask = 0
	return status, nil
}

// StepClock performs the one-off initial alignment to system time spec
// §4.6 allows ("no adjustments beyond an initial alignment"); repeated
// calls are accepted but are the caller's responsibility to avoid.
func (m *Module) StepClock(offset time.Duration) error {
	c, err := m.registry.FindByHandle(m.status.ReferenceClock)
	if err != nil {
		return fmt.Errorf("freerun: step_clock: %w", err)
	}
	now, err := c.Now()
	if err != nil {
		return err
	}
	return m.registry.SetTime(c, clockreg.SourceFreerun, now.Add(offset), true)
}

// SaveState writes a freeform text record of the module's current
// selection, per spec §4.6's save_state operation.
func (m *Module) SaveState(w io.Writer) error {
	_, err := fmt.Fprintf(w, "freerun reference=%s state=%s\n", m.status.ReferenceClock, m.status.State)
	return err
}

// WriteTopology writes a one-line topology record.
func (m *Module) WriteTopology(w io.Writer) error {
	_, err := fmt.Fprintf(w, "freerun -> %s\n", m.status.ReferenceClock)
	return err
}

var _ syncmodule.Instance = (*Module)(nil)
