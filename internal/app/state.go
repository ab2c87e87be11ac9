package app

import "fmt"

type State string

const (
	StateIdle             State = "idle"
	StateIdentityReady    State = "identity_ready"
	StateAccumulatorReady State = "accumulator_ready"
	StateContentPublished State = "content_published"
	StateBatchRunning     State = "batch_running"
	StateCompleted        State = "completed"
	StateAborted          State = "aborted"
)

var transitions = map[State][]State{
	StateIdle:             {StateIdentityReady, StateAborted},
	StateIdentityReady:    {StateAccumulatorReady, StateAborted},
	StateAccumulatorReady: {StateContentPublished, StateAborted},
	StateContentPublished: {StateBatchRunning, StateAborted},
	StateBatchRunning:     {StateCompleted, StateAborted},
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

func (s State) canMoveTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid run state transition %s -> %s", e.From, e.To)
}
