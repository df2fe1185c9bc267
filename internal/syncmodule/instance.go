// Package syncmodule defines the common contract shared by every
// sync-module variant (spec.md §4.6): ptp, pps, freerun, ntphelper. Each
// variant implements Instance and is driven by internal/engine's
// selection-interval tick.
package syncmodule

import (
	"io"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
)

// State is a sync-instance's position in the shared state machine. The
// full state set is drawn from the PTP port state machine (spec §4.6.1);
// non-PTP variants only ever occupy the subset relevant to them (freerun
// and ntphelper report SLAVE once synchronized, or FAULTY/DISABLED).
type State int

const (
	StateInitializing State = iota
	StateListening
	StatePreMaster
	StateMaster
	StatePassive
	StateUncalibrated
	StateSlave
	StateFaulty
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateListening:
		return "LISTENING"
	case StatePreMaster:
		return "PRE_MASTER"
	case StateMaster:
		return "MASTER"
	case StatePassive:
		return "PASSIVE"
	case StateUncalibrated:
		return "UNCALIBRATED"
	case StateSlave:
		return "SLAVE"
	case StateFaulty:
		return "FAULTY"
	case StateDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// ControlFlags are the bits the engine sets or clears on an instance at
// each selection interval (spec §4.8 step 3) and on demand (leap-second
// guard, test mode).
type ControlFlags uint32

const (
	ClockControlEnabled ControlFlags = 1 << iota
	TimestampProcessing
	LeapSecondGuard
	TestMode
)

// AlarmBits is the PTP port alarm bitmask (spec §4.6.1); non-PTP variants
// only ever report it as zero.
type AlarmBits uint32

const (
	AlarmNoTxTimestamps AlarmBits = 1 << iota
	AlarmNoRxTimestamps
	AlarmNoSyncPkts
	AlarmNoFollowUps
	AlarmNoDelayResps
	AlarmNoPDelayResps
	AlarmNoPDelayRespFollowUps
)

// TimeSource mirrors IEEE 1588's timeSource enumeration, truncated to the
// values this daemon can itself originate or observe.
type TimeSource uint8

const (
	TimeSourceAtomicClock  TimeSource = 0x10
	TimeSourceGPS          TimeSource = 0x20
	TimeSourceTerrestrial  TimeSource = 0x30
	TimeSourcePTP          TimeSource = 0x40
	TimeSourceNTP          TimeSource = 0x50
	TimeSourceHandSet      TimeSource = 0x60
	TimeSourceOther        TimeSource = 0x90
	TimeSourceInternalOsc  TimeSource = 0xA0
)

// GrandmasterDescriptor is the quality tuple the selector compares between
// instances (spec §4.7) and the engine distributes to non-elected
// instances (spec §4.8 step 4).
type GrandmasterDescriptor struct {
	ClockIdentity           [8]byte
	ClockClass              uint8
	TimeSource              TimeSource
	ClockAccuracy           uint8
	OffsetScaledLogVariance uint16
	StepsRemoved            uint16
	Traceable               bool
}

// Less implements spec §4.7's tuple ordering restricted to the
// grandmaster-quality fields (clock_class, accuracy, steps_removed,
// grandmaster_id); user_priority is compared separately by the caller
// since it lives on SyncInstanceStatus, not the descriptor.
func (g GrandmasterDescriptor) Less(o GrandmasterDescriptor) bool {
	if g.ClockClass != o.ClockClass {
		return g.ClockClass < o.ClockClass
	}
	if g.ClockAccuracy != o.ClockAccuracy {
		return g.ClockAccuracy < o.ClockAccuracy
	}
	if g.StepsRemoved != o.StepsRemoved {
		return g.StepsRemoved < o.StepsRemoved
	}
	for i := range g.ClockIdentity {
		if g.ClockIdentity[i] != o.ClockIdentity[i] {
			return g.ClockIdentity[i] < o.ClockIdentity[i]
		}
	}
	return false
}

// SyncInstanceStatus is the status surface every Instance exposes (spec
// §4.6, first paragraph).
type SyncInstanceStatus struct {
	State              State
	AlarmBitmask       AlarmBits
	ReferenceClock     clockreg.Handle
	OffsetFromMaster   time.Duration
	ConfiguredPriority uint8
	Grandmaster        GrandmasterDescriptor
	LocalAccuracy      float64 // nanoseconds, 1-sigma
	UserPriority       uint8
}

// Instance is the operation contract every sync-module variant conforms
// to (spec §4.6, first paragraph). Each method corresponds 1:1 to one of
// the operations named there.
type Instance interface {
	// Control applies flags to the bits selected by mask, leaving the
	// rest untouched.
	Control(mask, flags ControlFlags)
	GetStatus() (SyncInstanceStatus, error)
	// StepClock commands an immediate, one-off clock step of offset
	// (used by the engine's control-socket "stepclocks" command, spec
	// §4.8).
	StepClock(offset time.Duration) error
	UpdateGrandmaster(info GrandmasterDescriptor)
	UpdateLeap(leap59, leap61 bool)
	SaveState(w io.Writer) error
	WriteTopology(w io.Writer) error
}

// ThreadedInstance is implemented by a sync-module variant that runs its
// own rtloop.Thread (spec §4.6: "it runs in its own thread"). Package
// engine detects this interface and drives such an instance by SendWait
// from its own reactor thread (spec §4.8 step 1: "Polls each sync-instance
// for its status via send_wait") instead of calling Instance's methods as
// plain synchronous Go calls from the engine's own goroutine. Variants
// that do not implement this (ptp, pps, ntphelper in this core; see
// internal/syncmodule/common.go) are still driven synchronously under
// Base's mutex.
type ThreadedInstance interface {
	Instance
	// Thread returns the instance's owning reactor thread, or nil before
	// Start has been called.
	Thread() *rtloop.Thread
}

// Message IDs a ThreadedInstance's OnMessage dispatches on, one per
// Instance operation, so the engine's SendWait calls and the instance's
// OnMessage agree on routing (spec §3: "id carries routing information
// for the recipient's dispatch").
const (
	MsgGetStatus uint32 = iota + 1
	MsgControl
	MsgStepClock
	MsgUpdateGrandmaster
	MsgUpdateLeap
	MsgSaveState
	MsgWriteTopology
)

// StatusReply is the SendWait reply payload for MsgGetStatus.
type StatusReply struct {
	Status SyncInstanceStatus
	Err    error
}

// ErrReply is the SendWait reply payload for operations whose only result
// is an error (MsgStepClock, MsgSaveState, MsgWriteTopology).
type ErrReply struct {
	Err error
}

// ControlArgs is the SendWait request payload for MsgControl.
type ControlArgs struct {
	Mask, Flags ControlFlags
}

// LeapArgs is the SendWait request payload for MsgUpdateLeap.
type LeapArgs struct {
	Leap59, Leap61 bool
}
