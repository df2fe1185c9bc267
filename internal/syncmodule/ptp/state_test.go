package ptp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

func TestTransitionListeningToUncalibratedOnAnnounce(t *testing.T) {
	require.Equal(t, syncmodule.StateUncalibrated, transition(syncmodule.StateListening, eventAnnounceReceived))
}

func TestTransitionAnyStateFaultsOnFault(t *testing.T) {
	for _, s := range []syncmodule.State{syncmodule.StateListening, syncmodule.StateSlave, syncmodule.StateMaster} {
		require.Equal(t, syncmodule.StateFaulty, transition(s, eventFault))
	}
}

func TestTransitionFaultyRecoversOnClear(t *testing.T) {
	require.Equal(t, syncmodule.StateListening, transition(syncmodule.StateFaulty, eventFaultCleared))
}

func TestTransitionSlaveToListeningOnAnnounceTimeout(t *testing.T) {
	require.Equal(t, syncmodule.StateListening, transition(syncmodule.StateSlave, eventAnnounceTimeout))
}

func TestTransitionAdminDisableFromAnyState(t *testing.T) {
	require.Equal(t, syncmodule.StateDisabled, transition(syncmodule.StateSlave, eventAdminDisable))
}
