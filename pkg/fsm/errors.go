package fsm

// TransitionNotAllowed is an error type caused by attempting to transition to a state that is
// not allowed by the FSM
type TransitionNotAllowed struct {
	From State
	To   State
}

func (e TransitionNotAllowed) Error() string {
	return "cannot transition from state " + string(e.From) + " to " + string(e.To)
}
