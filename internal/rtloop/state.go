package rtloop

// State is a thread's lifecycle state.
type State int32

const (
	// StateIdle is the state prior to Spawn's startup handler completing.
	StateIdle State = iota
	// StateStarting indicates OnStartup is currently running.
	StateStarting
	// StateRunning is the thread's normal steady-state.
	StateRunning
	// StateStopping indicates an exit has been requested and OnShutdown is
	// draining.
	StateStopping
	// StateStopped indicates the thread has exited and joined.
	StateStopped
)

// String returns the state's conventional name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ZombieReapPolicy governs what happens to a thread's bookkeeping once it
// has stopped (spec §4.1 "Shutdown").
type ZombieReapPolicy int

const (
	// ReapImmediate frees thread bookkeeping as soon as it has joined.
	ReapImmediate ZombieReapPolicy = iota
	// ReapDeferToProgramExit preserves the thread's name/state for
	// post-mortem queries (e.g. via the control socket) until the process
	// itself exits.
	ReapDeferToProgramExit
)
