package ptp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
	wireptp "github.com/Xilinx-CNS/sfptpd-sub004/internal/wire/ptp"
)

func pid(n uint16) wireptp.PortIdentity {
	return wireptp.PortIdentity{ClockIdentity: [8]byte{1, 2, 3, 4, 5, 6, 7, byte(n)}, PortNumber: n}
}

func TestForeignMasterSetObserveAndTouch(t *testing.T) {
	s := newForeignMasterSet(2, time.Second)
	now := time.Unix(1000, 0)

	require.True(t, s.Observe(pid(1), now, syncmodule.GrandmasterDescriptor{ClockClass: 6}, 128, 128))
	require.True(t, s.Observe(pid(2), now, syncmodule.GrandmasterDescriptor{ClockClass: 7}, 128, 128))
	require.Equal(t, 2, s.Len())

	// Re-observing a known source touches it: it moves to the newest end.
	require.True(t, s.Observe(pid(1), now.Add(time.Millisecond), syncmodule.GrandmasterDescriptor{ClockClass: 6}, 128, 128))
	require.Equal(t, pid(1), s.order[len(s.order)-1])

	// At capacity, with both entries fresh: new source is dropped.
	require.False(t, s.Observe(pid(3), now, syncmodule.GrandmasterDescriptor{}, 128, 128))
}

func TestForeignMasterSetEvictsStaleOnCapacity(t *testing.T) {
	s := newForeignMasterSet(1, time.Second)
	t0 := time.Unix(1000, 0)

	require.True(t, s.Observe(pid(1), t0, syncmodule.GrandmasterDescriptor{}, 128, 128))

	t1 := t0.Add(2 * time.Second) // entry 1 is now stale
	require.True(t, s.Observe(pid(2), t1, syncmodule.GrandmasterDescriptor{}, 128, 128))
	require.Equal(t, 1, s.Len())

	_, ok := s.entries[pid(1)]
	require.False(t, ok)
}

func TestForeignMasterSetExpireStale(t *testing.T) {
	s := newForeignMasterSet(4, time.Second)
	t0 := time.Unix(1000, 0)
	s.Observe(pid(1), t0, syncmodule.GrandmasterDescriptor{}, 128, 128)

	s.ExpireStale(t0.Add(2 * time.Second))
	require.Equal(t, 0, s.Len())
}

func TestForeignMasterSetBestPrefersLowerPriority1(t *testing.T) {
	s := newForeignMasterSet(4, time.Second)
	now := time.Unix(1000, 0)
	s.Observe(pid(1), now, syncmodule.GrandmasterDescriptor{ClockClass: 6}, 200, 128)
	s.Observe(pid(2), now, syncmodule.GrandmasterDescriptor{ClockClass: 6}, 100, 128)

	best, ok := s.Best()
	require.True(t, ok)
	require.Equal(t, pid(2), best.portIdentity)
}
