package ptp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/servo"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
	wireptp "github.com/Xilinx-CNS/sfptpd-sub004/internal/wire/ptp"
)

type fakeTransport struct {
	sentEvent   [][]byte
	sentGeneral [][]byte
	sendErr     error
}

func (f *fakeTransport) SendEvent(data []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentEvent = append(f.sentEvent, data)
	return nil
}

func (f *fakeTransport) SendGeneral(data []byte) error {
	f.sentGeneral = append(f.sentGeneral, data)
	return nil
}

type fakeTXSource struct {
	ts  time.Time
	ok  bool
	err error
}

func (f *fakeTXSource) PollTXTimestamp(sequenceID uint16) (time.Time, bool, error) {
	return f.ts, f.ok, f.err
}

func newTestPort(t *testing.T, tr transport, ts txTimestampSource) (*Port, *clockreg.Registry) {
	t.Helper()
	registry := clockreg.New(nil)
	clock := registry.GetSystemClock()
	sv := servo.New(servo.Default())
	cfg := Config{Profile: ProfileDefaultE2E, PortNumber: 1, ForeignMasterCap: 4}
	return New(cfg, clock, registry, sv, tr, ts, nil), registry
}

func announceMessage(seq uint16) *wireptp.Announce {
	a := &wireptp.Announce{}
	a.SequenceID = seq
	a.SourcePortIdentity = pid(seq)
	a.GrandmasterClockQuality = wireptp.ClockQuality{ClockClass: 6, ClockAccuracy: 0x20}
	a.GrandmasterPriority1 = 128
	a.GrandmasterPriority2 = 128
	a.GrandmasterIdentity = [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	return a
}

func TestPortEnableListensAndAcceptsAnnounce(t *testing.T) {
	p, _ := newTestPort(t, &fakeTransport{}, &fakeTXSource{})
	p.Enable()

	now := time.Unix(1000, 0)
	p.HandleAnnounce(announceMessage(1), now)

	status, err := p.GetStatus()
	require.NoError(t, err)
	require.Equal(t, syncmodule.StateUncalibrated, status.State)
}

func TestPortOneStepSyncPromotesToSlaveAfterTwoGoodSamples(t *testing.T) {
	p, _ := newTestPort(t, &fakeTransport{}, &fakeTXSource{})
	p.Enable()
	p.HandleAnnounce(announceMessage(1), time.Unix(1000, 0))

	origin := time.Unix(2000, 0)
	sync := &wireptp.Sync{}
	sync.Timestamp = wireptp.Timestamp{SecondsLow: uint32(origin.Unix())}

	p.HandleSync(sync, origin.Add(100*time.Microsecond), false)
	status, _ := p.GetStatus()
	require.Equal(t, syncmodule.StateUncalibrated, status.State)

	p.HandleSync(sync, origin.Add(100*time.Microsecond), false)
	status, _ = p.GetStatus()
	require.Equal(t, syncmodule.StateSlave, status.State)
}

func TestPortTwoStepSyncWaitsForFollowUp(t *testing.T) {
	p, _ := newTestPort(t, &fakeTransport{}, &fakeTXSource{})
	p.Enable()
	p.HandleAnnounce(announceMessage(1), time.Unix(1000, 0))

	rx := time.Unix(2000, 0).Add(100 * time.Microsecond)
	sync := &wireptp.Sync{}
	sync.SequenceID = 7
	p.HandleSync(sync, rx, true)

	require.NotNil(t, p.pendingSync)

	fu := &wireptp.FollowUp{}
	fu.SequenceID = 7
	fu.PreciseOriginTimestamp = wireptp.Timestamp{SecondsLow: 2000}

	require.NoError(t, p.HandleFollowUp(fu))
	require.Nil(t, p.pendingSync)
}

func TestPortFollowUpRejectsUnknownSequence(t *testing.T) {
	p, _ := newTestPort(t, &fakeTransport{}, &fakeTXSource{})
	fu := &wireptp.FollowUp{}
	fu.SequenceID = 99
	require.Error(t, p.HandleFollowUp(fu))
}

func TestPortDelayReqRoundTripComputesPathDelay(t *testing.T) {
	tr := &fakeTransport{}
	txTime := time.Unix(3000, 0)
	ts := &fakeTXSource{ts: txTime, ok: true}
	p, _ := newTestPort(t, tr, ts)

	require.NoError(t, p.SendDelayReq(time.Unix(3000, 0)))
	require.Len(t, tr.sentEvent, 1)
	require.NotNil(t, p.pendingDelay)

	resp := &wireptp.DelayResp{}
	resp.SequenceID = p.pendingDelay.sequenceID
	receive := txTime.Add(2 * time.Millisecond)
	resp.ReceiveTimestamp = wireptp.Timestamp{SecondsLow: uint32(receive.Unix()), Nanoseconds: uint32(receive.Nanosecond())}

	require.NoError(t, p.HandleDelayResp(resp))
	require.Nil(t, p.pendingDelay)
	require.InDelta(t, time.Millisecond, p.lastPathDelay, float64(time.Microsecond))
}

func TestPortSendDelayReqRaisesAlarmAfterRepeatedTXFailures(t *testing.T) {
	tr := &fakeTransport{}
	ts := &fakeTXSource{ok: false}
	p, _ := newTestPort(t, tr, ts)

	for i := 0; i < missWindow; i++ {
		require.Error(t, p.SendDelayReq(time.Now()))
	}

	status, _ := p.GetStatus()
	require.NotZero(t, status.AlarmBitmask&syncmodule.AlarmNoTxTimestamps)
}

func TestPortStepClockRejectsSystemClock(t *testing.T) {
	// The test port is bound to the registry's system clock, which SetTime
	// refuses to step directly (spec §4.4: stepping CLOCK_REALTIME requires
	// host privilege this core does not assume).
	p, _ := newTestPort(t, &fakeTransport{}, &fakeTXSource{})
	require.Error(t, p.StepClock(time.Second))
}

func TestPortLeapSecondGuardDefersSync(t *testing.T) {
	p, _ := newTestPort(t, &fakeTransport{}, &fakeTXSource{})
	p.UpdateLeap(true, false)
	p.Control(syncmodule.LeapSecondGuard, syncmodule.LeapSecondGuard)

	sync := &wireptp.Sync{}
	p.HandleSync(sync, time.Now(), false)

	status, _ := p.GetStatus()
	require.Zero(t, status.OffsetFromMaster)
}
