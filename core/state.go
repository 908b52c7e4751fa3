package core

// State is the lifecycle state of a single agent instance. The string values
// are the wire form stored in presence records.
type State string

const (
	// StateInitializing is the state between construction and a completed Startup.
	StateInitializing State = "initializing"
	// StateReady means startup completed and the agent can serve messages.
	StateReady State = "ready"
	// StateRunning is an optional busy variant of StateReady.
	StateRunning State = "running"
	// StateStopping is entered at the beginning of Shutdown.
	StateStopping State = "stopping"
	// StateStopped is the terminal state after Shutdown.
	StateStopped State = "stopped"
	// StateError is entered when the mailbox could not be started.
	StateError State = "error"
)

// IsReady reports whether the state counts as "able to serve".
// READY and RUNNING are equivalent for all external readiness checks.
func (s State) IsReady() bool {
	return s == StateReady || s == StateRunning
}

// IsTerminal returns true for STOPPED and ERROR.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateError
}

// IsValid returns true if the state is one of the known lifecycle states.
func (s State) IsValid() bool {
	switch s {
	case StateInitializing, StateReady, StateRunning, StateStopping, StateStopped, StateError:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the state.
func (s State) String() string { return string(s) }

// AllStates returns every lifecycle state in declaration order.
func AllStates() []State {
	return []State{StateInitializing, StateReady, StateRunning, StateStopping, StateStopped, StateError}
}
