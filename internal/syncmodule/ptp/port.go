// Package ptp implements the PTP (IEEE 1588) sync-module variant of
// spec.md §4.6.1: per-port state machine, foreign-master data set,
// two-step/one-step sync handling, E2E/P2P path-delay measurement, and
// the LACP bond transmit-side bypass.
package ptp

import (
	"fmt"
	"io"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/servo"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
	wireptp "github.com/Xilinx-CNS/sfptpd-sub004/internal/wire/ptp"
)

// missWindow is the number of consecutive missed events of one kind
// before the corresponding alarm bit is raised (spec §4.6.1: "missing
// timestamps within a configurable window raise alarms").
const missWindow = 3

// pendingSync tracks a two-step SYNC awaiting its FOLLOW_UP.
type pendingSync struct {
	sequenceID  uint16
	rxTimestamp time.Time
}

// pendingDelayReq tracks a DELAY_REQ awaiting its DELAY_RESP (E2E). P2P
// exchanges are tracked by pendingPDelay.
type pendingDelayReq struct {
	sequenceID uint16
	txTimestamp time.Time
}

// Config configures a Port.
type Config struct {
	Profile            Profile
	UserPriority       uint8
	ConfiguredPriority uint8
	ForeignMasterCap   int
	ClockIdentity      [8]byte
	PortNumber         uint16
	DomainNumber       uint8
}

// WithDefaults sets ForeignMasterCap to 8 when it is unset; other fields
// are returned unchanged.
func (c Config) WithDefaults() Config {
	if c.ForeignMasterCap == 0 {
		c.ForeignMasterCap = 8
	}
	return c
}

// Port is one PTP port instance: the sync-module Instance implementation
// for the ptp variant.
type Port struct {
	syncmodule.Base

	cfg    Config
	logger logging.Logger

	clock    *clockreg.Clock
	registry *clockreg.Registry
	servo    *servo.Servo

	transport transport
	txSource  txTimestampSource

	state   syncmodule.State
	fmSet   *foreignMasterSet
	lacp    *lacpBypass

	lastAnnounce time.Time

	pendingSync      *pendingSync
	pendingDelay     *pendingDelayReq
	pendingPDelay    *pendingPDelay
	pendingPDelayResp *pendingPDelayResp

	sequenceID uint16

	alarms syncmodule.AlarmBits

	missedTx, missedRx, missedSync, missedFollowUp, missedDelayResp, missedPDelayResp, missedPDelayRespFU int

	lastOffset    time.Duration
	lastPathDelay time.Duration
	syncStreak    int // consecutive good syncs; promotes UNCALIBRATED -> SLAVE

	// lastSyncOrigin/lastSyncRx are the most recently completed SYNC's t1
	// (master origin timestamp) and t2 (local RX timestamp), kept so
	// HandleDelayResp can fold the Sync leg into the E2E mean-path-delay
	// formula alongside the DELAY_REQ/DELAY_RESP leg.
	lastSyncOrigin time.Time
	lastSyncRx     time.Time

	// unicastPeers is the unicast transport-address table (spec.md's
	// unicast-negotiation skeleton); only consulted when the active
	// profile is unicast-capable and not multicast-only.
	unicastPeers []UnicastPeer
}

// New constructs a Port bound to clock, using servo for discipline.
func New(cfg Config, clock *clockreg.Clock, registry *clockreg.Registry, sv *servo.Servo, tr transport, ts txTimestampSource, logger logging.Logger) *Port {
	cfg = cfg.WithDefaults()
	return &Port{
		cfg:       cfg,
		logger:    logging.OrDefault(logger),
		clock:     clock,
		registry:  registry,
		servo:     sv,
		transport: tr,
		txSource:  ts,
		state:     syncmodule.StateInitializing,
		fmSet:     newForeignMasterSet(cfg.ForeignMasterCap, announceReceiptTimeout(cfg.Profile)),
	}
}

// Enable transitions the port out of INITIALIZING/DISABLED into LISTENING.
func (p *Port) Enable() { p.state = transition(p.state, eventAdminEnable) }

// Disable transitions the port into DISABLED (spec §4.6.1: "administrative
// control-flag toggles").
func (p *Port) Disable() { p.state = transition(p.state, eventAdminDisable) }

// SetLACPBypass attaches the transmit-side bond-bypass socket pool (spec
// §4.6.1), or clears it (nil) when the active port stops being a bond.
func (p *Port) SetLACPBypass(l *lacpBypass) { p.lacp = l }

// OnBondCompositionChanged re-detects the bond bypass pool when the
// active port's bond membership changes (spec §4.6.1: "re-detection is
// triggered on bond composition changes"). A no-op if no bypass is
// attached.
func (p *Port) OnBondCompositionChanged(members []int32) error {
	if p.lacp == nil {
		return nil
	}
	return p.lacp.OnCompositionChange(members)
}

// HandleAnnounce processes a received ANNOUNCE, updating the foreign-
// master set and re-running the simplified BMCA.
func (p *Port) HandleAnnounce(msg *wireptp.Announce, now time.Time) {
	source := msg.SourcePortIdentity

	desc := p.cfg.Profile.Descriptor()
	if desc.UnicastCapable && !desc.MulticastOnly && !p.unicastPeerKnown(source.ClockIdentity) {
		p.logger.Log(logging.LevelNotice, "ignoring announce from unconfigured unicast peer",
			logging.F("port", p.cfg.PortNumber), logging.F("clock_identity", fmt.Sprintf("%x", source.ClockIdentity)))
		return
	}

	gm := syncmodule.GrandmasterDescriptor{
		ClockIdentity:           msg.GrandmasterIdentity,
		ClockClass:              msg.GrandmasterClockQuality.ClockClass,
		TimeSource:              syncmodule.TimeSource(msg.TimeSource),
		ClockAccuracy:           msg.GrandmasterClockQuality.ClockAccuracy,
		OffsetScaledLogVariance: msg.GrandmasterClockQuality.OffsetScaledLogVariance,
		StepsRemoved:            msg.StepsRemoved,
	}
	if !p.fmSet.Observe(source, now, gm, msg.GrandmasterPriority1, msg.GrandmasterPriority2) {
		p.logger.Log(logging.LevelWarning, "foreign master set full, dropping announce",
			logging.F("port", p.cfg.PortNumber))
		return
	}
	p.lastAnnounce = now
	p.runBMCA(now)
}

// runBMCA re-evaluates the foreign-master set and drives the state
// machine's BMCA-outcome events (spec §4.6.1).
func (p *Port) runBMCA(now time.Time) {
	best, ok := p.fmSet.Best()
	if !ok {
		p.state = transition(p.state, eventAnnounceTimeout)
		return
	}
	// This single-port daemon core never originates its own superior
	// clock, so BMCA here only distinguishes "accept this foreign master
	// as our SLAVE reference" from "ignore it" (PASSIVE is reachable
	// only via an explicit administrative/profile configuration this
	// core does not model, e.g. a redundant non-elected port).
	_ = best
	p.state = transition(p.state, eventBMCASlave)
}

// Tick is called once per selection interval (or more often, for the
// announce-timeout check) by the owning reactor. It expires stale foreign
// masters and, if no ANNOUNCE has arrived within the announce-receipt
// timeout while SLAVE or UNCALIBRATED, moves the port to LISTENING. It
// does not run BMCA itself.
func (p *Port) Tick(now time.Time) {
	p.fmSet.ExpireStale(now)
	if p.state == syncmodule.StateSlave || p.state == syncmodule.StateUncalibrated {
		if now.Sub(p.lastAnnounce) > announceReceiptTimeout(p.cfg.Profile) {
			p.state = transition(p.state, eventAnnounceTimeout)
		}
	}
}

// HandleSync processes a received SYNC. For a one-step message (no
// FOLLOW_UP expected, correctionField already carries the residence-time
// correction) it completes the offset measurement immediately; for a
// two-step message it records the RX timestamp and waits for FOLLOW_UP.
func (p *Port) HandleSync(msg *wireptp.Sync, rxTimestamp time.Time, twoStep bool) {
	if leap59, leap61 := p.Leap(); (leap59 || leap61) && p.HasFlag(syncmodule.LeapSecondGuard) {
		return // deferred per spec §4.6.1's leap-second guard behavior
	}

	if !twoStep {
		origin := timestampToTime(msg.Timestamp)
		p.completeSync(origin, rxTimestamp)
		return
	}

	p.pendingSync = &pendingSync{sequenceID: msg.SequenceID, rxTimestamp: rxTimestamp}
	p.missedFollowUp = 0
}

// HandleFollowUp completes a pending two-step SYNC.
func (p *Port) HandleFollowUp(msg *wireptp.FollowUp) error {
	if p.pendingSync == nil || p.pendingSync.sequenceID != msg.SequenceID {
		p.missedFollowUp++
		p.updateAlarm(syncmodule.AlarmNoFollowUps, p.missedFollowUp)
		return fmt.Errorf("ptp: follow_up for unknown sequence %d", msg.SequenceID)
	}
	origin := timestampToTime(msg.PreciseOriginTimestamp)
	pending := p.pendingSync
	p.pendingSync = nil
	p.completeSync(origin, pending.rxTimestamp)
	return nil
}

func (p *Port) completeSync(origin, rxTimestamp time.Time) {
	p.missedSync = 0
	offset := rxTimestamp.Sub(origin) - p.lastPathDelay
	p.lastOffset = offset
	p.lastSyncOrigin = origin
	p.lastSyncRx = rxTimestamp

	if p.state == syncmodule.StateUncalibrated {
		p.syncStreak++
		if p.syncStreak >= 2 {
			p.state = syncmodule.StateSlave
		}
	}

	if p.state != syncmodule.StateSlave {
		return
	}
	corr := p.servo.Tick(offset, p.lastPathDelay, rxTimestamp)
	if err := p.applyCorrection(corr); err != nil {
		p.logger.Log(logging.LevelWarning, "clock correction failed", logging.F("error", err))
	}
}

// applyCorrection drives the bound clock's registry entry per the servo's
// decision: a frequency trim for ActionSlew, an absolute step for
// ActionStep, nothing for ActionNone.
func (p *Port) applyCorrection(corr servo.Correction) error {
	switch corr.Action {
	case servo.ActionSlew:
		return p.registry.AdjustFrequency(p.clock, corr.FrequencyPPB)
	case servo.ActionStep:
		now, err := p.clock.Now()
		if err != nil {
			return err
		}
		return p.registry.SetTime(p.clock, clockreg.SourcePTP, now.Add(-corr.StepOffset), true)
	default:
		return nil
	}
}

// SendDelayReq issues a DELAY_REQ (E2E) and records it pending a response.
func (p *Port) SendDelayReq(now time.Time) error {
	p.sequenceID++
	hdr := wireptp.Header{VersionPTP: 2, SequenceID: p.sequenceID, DomainNumber: p.cfg.DomainNumber}
	hdr.SetType(wireptp.MessageDelayReq)
	msg := wireptp.DelayReq{}
	msg.Header = hdr

	data, err := wireptp.Encode(&msg)
	if err != nil {
		return fmt.Errorf("ptp: encode delay_req: %w", err)
	}
	if err := p.transport.SendEvent(data); err != nil {
		p.missedTx++
		p.updateAlarm(syncmodule.AlarmNoTxTimestamps, p.missedTx)
		return fmt.Errorf("ptp: send delay_req: %w", err)
	}

	ts, ok, err := p.txSource.PollTXTimestamp(p.sequenceID)
	if err != nil || !ok {
		p.missedTx++
		p.updateAlarm(syncmodule.AlarmNoTxTimestamps, p.missedTx)
		return fmt.Errorf("ptp: tx timestamp unavailable for delay_req %d", p.sequenceID)
	}
	p.missedTx = 0

	p.pendingDelay = &pendingDelayReq{sequenceID: p.sequenceID, txTimestamp: ts}
	return nil
}

// HandleDelayResp completes a pending DELAY_REQ, computing the mean path
// delay per IEEE 1588's E2E formula: ((t2 - t1) + (t4 - t3)) / 2, where
// t1/t2 are the most recently completed SYNC's origin/RX timestamps and
// t3/t4 are this DELAY_REQ's TX timestamp and the DELAY_RESP's receive
// timestamp. Mirrors the symmetric P2P formula in completePDelay.
func (p *Port) HandleDelayResp(msg *wireptp.DelayResp) error {
	if p.pendingDelay == nil || p.pendingDelay.sequenceID != msg.SequenceID {
		p.missedDelayResp++
		p.updateAlarm(syncmodule.AlarmNoDelayResps, p.missedDelayResp)
		return fmt.Errorf("ptp: delay_resp for unknown sequence %d", msg.SequenceID)
	}
	p.missedDelayResp = 0
	receive := timestampToTime(msg.ReceiveTimestamp)
	pending := p.pendingDelay
	p.pendingDelay = nil

	delay := (p.lastSyncRx.Sub(p.lastSyncOrigin) + receive.Sub(pending.txTimestamp)) / 2
	if delay < 0 {
		delay = 0
	}
	p.lastPathDelay = delay
	return nil
}

// updateAlarm sets or clears bit in p.alarms depending on whether count
// has reached missWindow.
func (p *Port) updateAlarm(bit syncmodule.AlarmBits, count int) {
	if count >= missWindow {
		p.alarms |= bit
	} else {
		p.alarms &^= bit
	}
}

func timestampToTime(ts wireptp.Timestamp) time.Time {
	seconds := int64(ts.SecondsHigh)<<32 | int64(ts.SecondsLow)
	return time.Unix(seconds, int64(ts.Nanoseconds)).UTC()
}

// GetStatus implements syncmodule.Instance.
func (p *Port) GetStatus() (syncmodule.SyncInstanceStatus, error) {
	best, _ := p.fmSet.Best()
	gm := p.Grandmaster()
	if best != nil {
		gm = best.grandmaster
	}
	return syncmodule.SyncInstanceStatus{
		State:              p.state,
		AlarmBitmask:       p.alarms,
		ReferenceClock:     p.clock.Handle,
		OffsetFromMaster:   p.lastOffset,
		ConfiguredPriority: p.cfg.ConfiguredPriority,
		Grandmaster:        gm,
		LocalAccuracy:      50, // nanoseconds, hardware-timestamped E2E/P2P steady state
		UserPriority:       p.cfg.UserPriority,
	}, nil
}

// StepClock performs an immediate one-off step via the clock registry
// (used by the engine's control-socket "stepclocks" command).
func (p *Port) StepClock(offset time.Duration) error {
	now, err := p.clock.Now()
	if err != nil {
		return err
	}
	return p.registry.SetTime(p.clock, clockreg.SourcePTP, now.Add(offset), true)
}

// SaveState writes a freeform text record of the port's current state.
func (p *Port) SaveState(w io.Writer) error {
	lacpValid := -1
	if p.lacp != nil {
		lacpValid = p.lacp.ValidCount()
	}
	_, err := fmt.Fprintf(w, "ptp port=%d state=%s offset=%s path_delay=%s foreign_masters=%d alarms=%#x lacp_valid_sockets=%d\n",
		p.cfg.PortNumber, p.state, p.lastOffset, p.lastPathDelay, p.fmSet.Len(), uint32(p.alarms), lacpValid)
	return err
}

// WriteTopology writes a one-line topology record.
func (p *Port) WriteTopology(w io.Writer) error {
	best, ok := p.fmSet.Best()
	if !ok {
		_, err := fmt.Fprintf(w, "ptp port=%d -> (no master)\n", p.cfg.PortNumber)
		return err
	}
	_, err := fmt.Fprintf(w, "ptp port=%d -> %x\n", p.cfg.PortNumber, best.grandmaster.ClockIdentity)
	return err
}

var _ syncmodule.Instance = (*Port)(nil)
