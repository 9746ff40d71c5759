package supervisor

import "fmt"

// State is the supervisor lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateLocating   State = "locating"
	StateInstalling State = "installing"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateError      State = "error"
)

var allowedTransitions = map[State][]State{
	StateIdle:       {StateLocating},
	StateLocating:   {StateInstalling, StateError, StateStopping},
	StateInstalling: {StateStarting, StateError, StateStopping},
	StateStarting:   {StateRunning, StateError, StateStopping},
	StateRunning:    {StateStopping, StateIdle},
	StateStopping:   {StateIdle},
	StateError:      {StateLocating, StateIdle},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Starting reports whether s belongs to an in-flight start attempt.
func (s State) Starting() bool {
	return s == StateLocating || s == StateInstalling || s == StateStarting
}

// TransitionError is returned for an illegal state change.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s → %s", e.From, e.To)
}
