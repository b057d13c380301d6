package controller

// ModuleState is a module's position in the lifecycle DAG: it only ever
// advances UNINITIALIZED -> NOT_OPERATIONAL -> STARTING -> OPERATIONAL ->
// SHUTDOWN, except that any state may transition directly to SHUTDOWN on a
// critical error.
type ModuleState int

const (
	Uninitialized ModuleState = iota
	NotOperational
	Starting
	Operational
	Shutdown
)

func (s ModuleState) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case NotOperational:
		return "NOT_OPERATIONAL"
	case Starting:
		return "STARTING"
	case Operational:
		return "OPERATIONAL"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// canTransition reports whether moving from s to next is legal under the
// lifecycle monotonicity invariant.
func canTransition(s, next ModuleState) bool {
	if next == Shutdown {
		return true
	}
	return next == s+1
}
