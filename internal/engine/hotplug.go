package engine

import (
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
)

// rescan re-queries the clock registry against a new link-table version
// and, for any binding whose reference clock has gone missing, disables
// clock control on it until the clock reappears (spec §4.8: "orchestrating
// hotplug (re-querying the clock registry and rebuilding servo bindings
// when the link table changes)").
//
// Rebuilding a binding's clock handle itself (e.g. a PHC replaced by a
// different PHC index after a driver reload) is left to the owning
// sync-module, which re-resolves its reference clock the next time it
// runs its own clock-selection logic (ptp BMCA, freerun's DFS); this
// method only ensures the registry's clock set and each servo's
// clock-control gating stay consistent with the current link table.
func (e *Engine) rescan(table *linkstate.LinkTable) {
	e.registry.RescanLinux(table)

	e.mu.Lock()
	bindings := append([]*Binding(nil), e.bindings...)
	e.mu.Unlock()

	for _, b := range bindings {
		st, err := e.instanceStatus(b.Instance)
		if err != nil {
			continue
		}
		if st.ReferenceClock == clockreg.SystemClockHandle {
			continue
		}
		if _, err := e.registry.FindByHandle(st.ReferenceClock); err != nil {
			e.logger.Log(logging.LevelWarning, "reference clock disappeared on rescan",
				logging.F("instance", b.Name), logging.F("clock", string(st.ReferenceClock)))
			if b.Servo != nil {
				b.Servo.SetClockControlEnabled(false)
			}
		}
	}
}
