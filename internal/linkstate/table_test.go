package linkstate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
)

// TestRingRefcountScenario implements spec §8 scenario 5 literally: publish
// v1 with consumer-count 3; release twice; publishing v2 while
// refcount(v1)==1 must succeed (the ring has three other free slots);
// publishing v3 and v4 must also succeed (still within ring capacity), but
// publishing a fifth version while v1's slot is the one that would be
// reused, and v1 is still referenced, must return ErrTryAgain.
func TestRingRefcountScenario(t *testing.T) {
	r := linkstate.NewRing()

	v1, err := r.Publish([]linkstate.Link{{Index: 1, Name: "eth0"}}, 3)
	require.NoError(t, err)
	require.EqualValues(t, 1, v1.Version)
	require.EqualValues(t, 3, r.Refcount(v1))

	require.NoError(t, r.Release(v1))
	require.NoError(t, r.Release(v1))
	require.EqualValues(t, 1, r.Refcount(v1))

	// v2: slot 2, unrelated to v1's slot, must succeed regardless of v1's
	// outstanding refcount.
	v2, err := r.Publish([]linkstate.Link{{Index: 1, Name: "eth0"}, {Index: 2, Name: "eth1"}}, 3)
	require.NoError(t, err)
	require.EqualValues(t, 2, v2.Version)

	// v3, v4 occupy the remaining two of the ring's four slots.
	v3, err := r.Publish([]linkstate.Link{{Index: 1, Name: "eth0"}}, 3)
	require.NoError(t, err)
	v4, err := r.Publish([]linkstate.Link{{Index: 1, Name: "eth0"}}, 3)
	require.NoError(t, err)

	// v5 would need to reuse v1's slot. v1's refcount is still 1 (nonzero),
	// so publication must fail with try-again.
	_, err = r.Publish([]linkstate.Link{{Index: 1, Name: "eth0"}}, 3)
	require.ErrorIs(t, err, linkstate.ErrTryAgain)

	// Releasing v1's last reference frees the slot; the retry now succeeds.
	require.NoError(t, r.Release(v1))
	require.EqualValues(t, 0, r.Refcount(v1))

	v5, err := r.Publish([]linkstate.Link{{Index: 1, Name: "eth0"}}, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, v5.Version)

	require.NoError(t, r.Release(v2))
	require.NoError(t, r.Release(v2))
	require.NoError(t, r.Release(v2))
	require.NoError(t, r.Release(v3))
	require.NoError(t, r.Release(v3))
	require.NoError(t, r.Release(v3))
	require.NoError(t, r.Release(v4))
	require.NoError(t, r.Release(v4))
	require.NoError(t, r.Release(v4))
	require.NoError(t, r.Release(v5))
	require.NoError(t, r.Release(v5))
}

// TestRingRefcountNeverNegative verifies the "never below zero" invariant
// of spec §8: releasing an already-zero table returns ErrRefcountUnderflow
// rather than going negative.
func TestRingRefcountNeverNegative(t *testing.T) {
	r := linkstate.NewRing()
	v1, err := r.Publish([]linkstate.Link{{Index: 1}}, 1)
	require.NoError(t, err)

	require.NoError(t, r.Release(v1))
	err = r.Release(v1)
	require.ErrorIs(t, err, linkstate.ErrRefcountUnderflow)
}

func TestLinkTableLookup(t *testing.T) {
	tbl := &linkstate.LinkTable{Rows: []linkstate.Link{
		{Index: 1, Name: "eth0"},
		{Index: 3, Name: "eth1"},
	}}
	require.Equal(t, "eth1", tbl.ByIndex(3).Name)
	require.Nil(t, tbl.ByIndex(2))
	require.EqualValues(t, 1, tbl.ByName("eth0").Index)
	require.Nil(t, tbl.ByName("missing"))
}
