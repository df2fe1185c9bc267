package freerun

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

func hwTable() *linkstate.LinkTable {
	return &linkstate.LinkTable{
		Version: 1,
		Rows: []linkstate.Link{
			{Index: 1, Name: "eth0", PHCIndex: 0, TSCaps: linkstate.TimestampingCapsHardwareRx},
			{Index: 2, Name: "eth1", PHCIndex: 1},
		},
	}
}

func TestSelectBestPrefersHardwareTimestamping(t *testing.T) {
	c, ok := selectBest(hwTable(), "")
	require.True(t, ok)
	require.Equal(t, clockreg.Handle("phc:0"), c.handle)
}

func TestSelectBestNamedSearchesChain(t *testing.T) {
	table := &linkstate.LinkTable{Rows: []linkstate.Link{
		{Index: 1, Name: "bond0", PHCIndex: -1},
		{Index: 2, Name: "eth0", PHCIndex: 0, MasterIndex: 1, TSCaps: linkstate.TimestampingCapsHardwareRx},
		{Index: 3, Name: "eth1", PHCIndex: 1, MasterIndex: 1},
	}}

	c, ok := selectBest(table, "bond0")
	require.True(t, ok)
	require.Equal(t, clockreg.Handle("phc:0"), c.handle)
}

func TestModuleSelectFaultyWithNoCandidate(t *testing.T) {
	m := New(clockreg.New(nil), "", 128)
	err := m.Select(&linkstate.LinkTable{})
	require.Error(t, err)

	status, err := m.GetStatus()
	require.NoError(t, err)
	require.Equal(t, syncmodule.StateFaulty, status.State)
	require.Equal(t, 0, int(status.AlarmBitmask))
}

func TestModuleWriteTopology(t *testing.T) {
	registry := clockreg.New(nil)
	m := New(registry, "", 128)
	var buf bytes.Buffer
	_ = m.WriteTopology(&buf)
	require.NotEmpty(t, buf.String())
}
