package fsm

// Session states.  A session starts idle, monitors until stopped, and may be restarted.
const (
	Idle       State = "idle"
	Monitoring State = "monitoring"
	Stopped    State = "stopped"
)

// NewSession returns a machine in the Idle state with the session lifecycle transitions.
func NewSession(opts ...MachineOption) (*Machine, error) {
	opts = append([]MachineOption{WithTransitions(
		T(Idle, Monitoring),
		T(Monitoring, Stopped),
		T(Stopped, Monitoring),
	)}, opts...)
	return NewMachine(Idle, opts...)
}
