package machine

// State represents the controller's lifecycle state.
type State int

const (
	StateUnbound  State = iota
	StateBound          // bound to a bundle, VM stopped
	StateStarting       // start issued, not yet running
	StateRunning        // VM is running
	StateStopping       // stop requested, escalation pending
	StateStopped        // terminal: VM halted cleanly
	StateFailed         // terminal: unrecoverable error
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transitions are possible.
func (s State) terminal() bool {
	return s == StateStopped || s == StateFailed
}
