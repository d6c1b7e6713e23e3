package engine

// State is the stage an invocation is in. Failed is only reachable from Loading.
type State string

const (
	StateReceived    State = "received"
	StateLoading     State = "loading"
	StateEvaluating  State = "evaluating"
	StateDispatching State = "dispatching"
	StateRecording   State = "recording"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

var transitions = map[State][]State{
	StateReceived:    {StateLoading},
	StateLoading:     {StateEvaluating, StateRecording, StateCompleted, StateFailed},
	StateEvaluating:  {StateDispatching, StateRecording},
	StateDispatching: {StateEvaluating, StateRecording},
	StateRecording:   {StateCompleted},
}

// CanTransition reports whether an invocation may move from one state to another. Loading goes
// straight to Recording when no rule listens to the trigger, and straight to Completed when the
// occurrence is replayed.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
