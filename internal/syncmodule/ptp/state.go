package ptp

import (
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

// event identifies what drove a state transition (spec §4.6.1: "Per-port
// transitions are driven by: arrival of qualified ANNOUNCE messages from
// foreign masters, best-master-clock-algorithm outcome, receipt timeouts,
// fault conditions (send/timestamp errors), administrative control-flag
// toggles").
type event int

const (
	eventAnnounceReceived event = iota
	eventBMCAMaster         // this port's own clock is best
	eventBMCASlave          // another port's master is best, and it is a foreign master
	eventBMCAPassive        // another port's master is best, but not a foreign master for us
	eventAnnounceTimeout
	eventFault
	eventFaultCleared
	eventAdminDisable
	eventAdminEnable
)

// transition implements the state machine's transition table. Most states
// have a single outgoing edge per event; the full IEEE 1588 state diagram
// has more nuance (e.g. distinguishing boundary-clock multi-port
// interactions) that this single-port daemon core does not model.
func transition(current syncmodule.State, e event) syncmodule.State {
	if e == eventAdminDisable {
		return syncmodule.StateDisabled
	}
	if e == eventFault {
		return syncmodule.StateFaulty
	}

	switch current {
	case syncmodule.StateInitializing:
		if e == eventAdminEnable {
			return syncmodule.StateListening
		}
	case syncmodule.StateDisabled:
		if e == eventAdminEnable {
			return syncmodule.StateListening
		}
	case syncmodule.StateFaulty:
		if e == eventFaultCleared {
			return syncmodule.StateListening
		}
	case syncmodule.StateListening:
		switch e {
		case eventAnnounceReceived, eventBMCASlave:
			return syncmodule.StateUncalibrated
		case eventBMCAMaster:
			return syncmodule.StatePreMaster
		case eventBMCAPassive:
			return syncmodule.StatePassive
		}
	case syncmodule.StatePreMaster:
		if e == eventBMCAMaster {
			return syncmodule.StateMaster
		}
		if e == eventBMCASlave {
			return syncmodule.StateUncalibrated
		}
	case syncmodule.StateMaster:
		if e == eventBMCASlave {
			return syncmodule.StateUncalibrated
		}
		if e == eventBMCAPassive {
			return syncmodule.StatePassive
		}
	case syncmodule.StatePassive:
		switch e {
		case eventBMCAMaster:
			return syncmodule.StatePreMaster
		case eventBMCASlave:
			return syncmodule.StateUncalibrated
		}
	case syncmodule.StateUncalibrated:
		switch e {
		case eventBMCAMaster:
			return syncmodule.StatePreMaster
		case eventAnnounceTimeout:
			return syncmodule.StateListening
		}
		// A steady stream of successful sync measurements (handled by
		// Port.completeSync, not this event table) promotes UNCALIBRATED
		// to SLAVE once the servo has enough samples to trust its output.
	case syncmodule.StateSlave:
		switch e {
		case eventBMCAMaster:
			return syncmodule.StatePreMaster
		case eventAnnounceTimeout:
			return syncmodule.StateListening
		}
	}
	return current
}

// announceReceiptTimeout returns the configured timeout for profile,
// expressed in wall-clock time from a default 1-second announce interval
// (spec §4.6.1 ties the timeout to the profile's announce_timeout
// multiplier).
func announceReceiptTimeout(p Profile) time.Duration {
	return time.Duration(p.Descriptor().AnnounceTimeout) * time.Second
}
