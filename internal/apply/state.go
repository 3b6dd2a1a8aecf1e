package apply

// State of an apply session
type State int

const (
	Idle State = iota
	Applying
	Clean
	ConflictDetected
	Aborted
	AwaitingOperator
	Skipped
	Resolved
)

var stateNames = [...]string{
	Idle:             "idle",
	Applying:         "applying",
	Clean:            "clean",
	ConflictDetected: "conflict detected",
	Aborted:          "aborted",
	AwaitingOperator: "awaiting operator",
	Skipped:          "skipped",
	Resolved:         "resolved",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Outcome is how a finished session ended
type Outcome int

const (
	// OutcomeClean means everything applied without operator help
	OutcomeClean Outcome = iota
	// OutcomeAborted means the operation was rolled back
	OutcomeAborted
	// OutcomeResolved means everything applied after at least one conflict
	OutcomeResolved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAborted:
		return "aborted"
	case OutcomeResolved:
		return "resolved after conflict"
	default:
		return "clean"
	}
}

// Decision is the operator's answer to a conflict
type Decision int

const (
	// Continue resolves with whatever the operator staged, or skips the patch
	Continue Decision = iota
	// Wiggle fuzzy-merges the rejected hunks and then continues
	Wiggle
	// Abort rolls the operation back
	Abort
)

func (d Decision) String() string {
	switch d {
	case Wiggle:
		return "wiggle"
	case Abort:
		return "abort"
	default:
		return "continue"
	}
}

// transitions lists the legal moves of the state machine
var transitions = map[State][]State{
	Idle:             {Applying},
	Applying:         {Clean, ConflictDetected, Aborted},
	ConflictDetected: {Aborted, AwaitingOperator, Skipped, Resolved},
	AwaitingOperator: {Aborted, Skipped, Resolved},
	Skipped:          {Applying},
	Resolved:         {Applying, Clean, Aborted},
}

func canMove(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
