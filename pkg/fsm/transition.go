package fsm

// Transition represents an allowable transition from one state to another
type Transition struct {
	From State
	To   State
}

// Hook is called after every successful transition, while the machine is still locked.  Hooks
// must not call back into the machine.
type Hook func(from, to State)

// T is a shorthand function for declaring allowable transitions during FSM creation
func T(from State, tos ...State) []Transition {
	var transitions []Transition
	for _, to := range tos {
		transitions = append(transitions, Transition{
			From: from,
			To:   to,
		})
	}
	return transitions
}

func flatten(t [][]Transition) []Transition {
	var transitions []Transition
	for _, t1 := range t {
		transitions = append(transitions, t1...)
	}
	return transitions
}
