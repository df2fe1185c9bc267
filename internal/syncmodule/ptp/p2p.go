package ptp

import (
	"fmt"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
	wireptp "github.com/Xilinx-CNS/sfptpd-sub004/internal/wire/ptp"
)

// pendingPDelay tracks an in-flight PDELAY_REQ (spec §4.6.1's P2P flow):
// t1, our request's TX timestamp.
type pendingPDelay struct {
	sequenceID  uint16
	txTimestamp time.Time
}

// pendingPDelayResp tracks a two-step peer's PDELAY_RESP awaiting its
// FOLLOW_UP: t2, the peer's request-receipt timestamp, and t4, our RX
// timestamp of the PDELAY_RESP itself.
type pendingPDelayResp struct {
	sequenceID      uint16
	requestReceipt  time.Time // t2
	responseReceipt time.Time // t4
}

// SendPDelayReq issues a PDELAY_REQ (P2P delay mechanism) and records it
// pending a response. Only meaningful when the port's profile selects
// DelayMechanismP2P.
func (p *Port) SendPDelayReq(now time.Time) error {
	if p.cfg.Profile.Descriptor().DelayMechanism != DelayMechanismP2P {
		return fmt.Errorf("ptp: port %d profile is not P2P", p.cfg.PortNumber)
	}

	p.sequenceID++
	hdr := wireptp.Header{VersionPTP: 2, SequenceID: p.sequenceID, DomainNumber: p.cfg.DomainNumber}
	hdr.SetType(wireptp.MessagePDelayReq)
	msg := wireptp.PDelayReq{}
	msg.Header = hdr

	data, err := wireptp.Encode(&msg)
	if err != nil {
		return fmt.Errorf("ptp: encode pdelay_req: %w", err)
	}
	if err := p.transport.SendEvent(data); err != nil {
		p.missedTx++
		p.updateAlarm(syncmodule.AlarmNoTxTimestamps, p.missedTx)
		return fmt.Errorf("ptp: send pdelay_req: %w", err)
	}

	ts, ok, err := p.txSource.PollTXTimestamp(p.sequenceID)
	if err != nil || !ok {
		p.missedTx++
		p.updateAlarm(syncmodule.AlarmNoTxTimestamps, p.missedTx)
		return fmt.Errorf("ptp: tx timestamp unavailable for pdelay_req %d", p.sequenceID)
	}
	p.missedTx = 0

	p.pendingPDelay = &pendingPDelay{sequenceID: p.sequenceID, txTimestamp: ts}
	return nil
}

// HandlePDelayResp records the peer's receipt timestamp, pending the
// matching PDELAY_RESP_FOLLOW_UP for a two-step peer.
func (p *Port) HandlePDelayResp(msg *wireptp.PDelayResp, rxTimestamp time.Time, twoStep bool) error {
	if p.pendingPDelay == nil || p.pendingPDelay.sequenceID != msg.SequenceID {
		p.missedPDelayResp++
		p.updateAlarm(syncmodule.AlarmNoPDelayResps, p.missedPDelayResp)
		return fmt.Errorf("ptp: pdelay_resp for unknown sequence %d", msg.SequenceID)
	}
	p.missedPDelayResp = 0

	requestReceipt := timestampToTime(msg.RequestReceiptTimestamp)
	if !twoStep {
		// One-step: the peer's residence time (t3-t2) is assumed
		// negligible and folded into requestReceipt already.
		p.completePDelay(requestReceipt, requestReceipt, rxTimestamp)
		return nil
	}
	p.pendingPDelayResp = &pendingPDelayResp{
		sequenceID:      msg.SequenceID,
		requestReceipt:  requestReceipt,
		responseReceipt: rxTimestamp,
	}
	p.missedPDelayRespFU = 0
	return nil
}

// HandlePDelayRespFollowUp completes a two-step peer's PDELAY_RESP.
func (p *Port) HandlePDelayRespFollowUp(msg *wireptp.PDelayRespFollowUp) error {
	if p.pendingPDelayResp == nil || p.pendingPDelayResp.sequenceID != msg.SequenceID {
		p.missedPDelayRespFU++
		p.updateAlarm(syncmodule.AlarmNoPDelayRespFollowUps, p.missedPDelayRespFU)
		return fmt.Errorf("ptp: pdelay_resp_follow_up for unknown sequence %d", msg.SequenceID)
	}
	pending := p.pendingPDelayResp
	p.pendingPDelayResp = nil

	responseOrigin := timestampToTime(msg.ResponseOriginTimestamp)
	p.completePDelay(pending.requestReceipt, responseOrigin, pending.responseReceipt)
	return nil
}

// completePDelay computes the peer path delay per IEEE 1588's symmetric
// P2P formula: ((t4 - t1) - (t3 - t2)) / 2, where t1 is our request's TX
// timestamp (held in p.pendingPDelay), t2 the peer's request-receipt
// timestamp, t3 the peer's response-origin timestamp, and t4 our RX
// timestamp of the response.
func (p *Port) completePDelay(t2, t3, t4 time.Time) {
	pending := p.pendingPDelay
	p.pendingPDelay = nil
	if pending == nil {
		return
	}

	delay := (t4.Sub(pending.txTimestamp) - t3.Sub(t2)) / 2
	if delay < 0 {
		delay = 0
	}
	p.lastPathDelay = delay
}

// MarkRxTimestampMissing records that a received event packet arrived
// without a usable hardware RX timestamp (spec §4.6.1: NO_RX_TIMESTAMPS).
// Called by the transport layer, which is the only place that can observe
// the kernel's SO_TIMESTAMPING control-message absence.
func (p *Port) MarkRxTimestampMissing() {
	p.missedRx++
	p.updateAlarm(syncmodule.AlarmNoRxTimestamps, p.missedRx)
}
