package orchestrator

import (
	"errors"
	"fmt"
)

// State is a position in the per-device change workflow.
type State string

const (
	StateIdle      State = "idle"
	StateConnected State = "connected"
	StateBackedUp  State = "backed-up"
	StateStaged    State = "staged"
	StateDiffed    State = "diffed"
	StateCommitted State = "committed"
	StateDiscarded State = "discarded"
	StateClosed    State = "closed"
	StateAborted   State = "aborted"
)

// ErrInvalidTransition is returned when a step is called out of order.
var ErrInvalidTransition = errors.New("invalid state transition")

// transitions lists the legal next states. Aborted is reachable from
// every non-terminal state and Closed from every opened state.
var transitions = map[State][]State{
	StateIdle:      {StateConnected, StateAborted, StateClosed},
	StateConnected: {StateBackedUp, StateAborted, StateClosed},
	StateBackedUp:  {StateStaged, StateAborted, StateClosed},
	StateStaged:    {StateDiffed, StateAborted, StateClosed},
	StateDiffed:    {StateCommitted, StateDiscarded, StateAborted, StateClosed},
	StateCommitted: {StateClosed},
	StateDiscarded: {StateClosed},
	StateAborted:   {StateClosed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}
