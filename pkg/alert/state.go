package alert

import "github.com/BTBurke/oscmon/pkg/fsm"

// A rule is either clear or firing.  Each edge is reported once.
const (
	Clear  = fsm.State("clear")
	Firing = fsm.State("firing")
)

func newMachine() (*fsm.Machine, error) {
	return fsm.NewMachine(Clear, fsm.WithTransitions(
		fsm.T(Clear, Firing),
		fsm.T(Firing, Clear),
	))
}
