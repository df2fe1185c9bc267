package ntphelper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	report    daemonReport
	queryErr  error
	lastCmd   string
	controlErr error
}

func (f *fakeConn) query() (daemonReport, error) { return f.report, f.queryErr }
func (f *fakeConn) control(command string) error {
	f.lastCmd = command
	return f.controlErr
}
func (f *fakeConn) Close() error { return nil }

func TestParseReport(t *testing.T) {
	r, err := parseReport("offset=1500 source=10.0.0.1 stratum=2\n")
	require.NoError(t, err)
	require.Equal(t, time.Duration(1500), r.offset)
	require.Equal(t, "10.0.0.1", r.source)
	require.EqualValues(t, 2, r.stratum)
}

func TestParseReportRejectsBadField(t *testing.T) {
	_, err := parseReport("offset=notanumber\n")
	require.Error(t, err)
}

func TestClientPollAndStatus(t *testing.T) {
	fc := &fakeConn{report: daemonReport{offset: 2 * time.Millisecond, source: "ntp.example", stratum: 1}}
	c := New(fc, 64)

	require.NoError(t, c.Poll())

	status, err := c.GetStatus()
	require.NoError(t, err)
	require.Equal(t, 2*time.Millisecond, status.OffsetFromMaster)
	require.EqualValues(t, 1, status.Grandmaster.StepsRemoved)
}

func TestClientStepClockSendsControlCommand(t *testing.T) {
	fc := &fakeConn{}
	c := New(fc, 64)

	require.NoError(t, c.StepClock(500*time.Millisecond))
	require.Equal(t, "step 500000000", fc.lastCmd)
}
