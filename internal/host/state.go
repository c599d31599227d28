package host

import "fmt"

// State is the manager's lifecycle phase.
type State string

const (
	StateNotStarted State = "not_started"
	StateStarting   State = "starting"
	StateListening  State = "listening"
	StateKilled     State = "killed"
)

var transitions = map[State][]State{
	StateNotStarted: {StateStarting},
	StateStarting:   {StateListening, StateNotStarted},
	StateListening:  {StateKilled},
	StateKilled:     {StateStarting},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrLifecycleOrder, from, to)
}
