package processmgr

// StateKind enumerates the scheduling states a process can report.
type StateKind uint8

const (
	Running StateKind = iota
	Sleeping
	Killed
	Halted
	// Gone is returned for identifiers that are no longer in the process
	// table. No live process is ever in this state.
	Gone
)

func (k StateKind) String() string {
	switch k {
	case Running:
		return "Running"
	case Sleeping:
		return "Sleeping"
	case Killed:
		return "Killed"
	case Halted:
		return "Halted"
	case Gone:
		return "Gone"
	default:
		return "Unknown"
	}
}

// ProcessState is a state kind plus, for Killed, the reason.
type ProcessState struct {
	Kind   StateKind
	Reason string
}

// Alive reports whether the process can still be scheduled.
func (s ProcessState) Alive() bool {
	return s.Kind == Running || s.Kind == Sleeping
}

func (s ProcessState) String() string {
	if s.Kind == Killed {
		return "Killed(" + s.Reason + ")"
	}
	return s.Kind.String()
}

// ProcessStatus is an immutable snapshot of a process.
type ProcessStatus struct {
	State  ProcessState
	Cycles int64
}

var statusGone = ProcessStatus{State: ProcessState{Kind: Gone}}
