// Package uploads persists the state machine that carries one staged upload
// from the upload form to a stored result.
package uploads

import "fmt"

// State is the lifecycle stage of an upload session.
type State string

// Session states. NoFile is never stored; it is the origin of the first
// transition and the state a user is returned to after a rejection.
const (
	NoFile     State = "no-file"
	FileStaged State = "file-staged"
	Validated  State = "validated"
	Rejected   State = "rejected"
	Analyzed   State = "analyzed"
	Persisted  State = "persisted"
	Cleared    State = "cleared"
	Failed     State = "failed"
	Abandoned  State = "abandoned"
)

var transitions = map[State][]State{
	NoFile:     {FileStaged},
	FileStaged: {Validated, Rejected, Failed, Abandoned},
	Validated:  {Analyzed, Failed, Abandoned},
	Analyzed:   {Persisted, Failed, Abandoned},
	Persisted:  {Cleared, Abandoned},
}

// Terminal reports whether no further transition is possible. The staged
// object of a terminal session has been deleted or is being deleted.
func (s State) Terminal() bool {
	switch s {
	case Cleared, Rejected, Failed, Abandoned:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is in the table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a change the table does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid upload session transition %s -> %s", e.From, e.To)
}
