// Package fsm implements the finite state machine that tracks whether a monitoring session is
// accepting samples.
package fsm

import (
	"sync"
)

// State represents a possible transition state for the FSM
type State string

// Machine is a basic finite state machine.  It is safe for concurrent use.
type Machine struct {
	current   State
	initial   State
	allowable map[State][]State
	hooks     []Hook
	mutex     sync.RWMutex
}

// NewMachine returns a new basic Machine with configured options.  If you do not utilize any
// options, the machine will not have any configured transitions.
func NewMachine(initial State, opts ...MachineOption) (*Machine, error) {
	machine := &Machine{
		current:   initial,
		initial:   initial,
		allowable: map[State][]State{},
	}
	for _, opt := range opts {
		if err := opt(machine); err != nil {
			return nil, err
		}
	}
	return machine, nil
}

// State returns the current state of the Machine
func (m *Machine) State() State {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// Is reports whether the machine is currently in state s.
func (m *Machine) Is(s State) bool {
	return m.State() == s
}

// Allowable checks whether a transition between two states is allowable
func (m *Machine) Allowable(from, to State) bool {
	return contains(to, m.allowable[from])
}

// Transition will change the current state of the machine if it is allowable
func (m *Machine) Transition(to State) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	from := m.current
	if !m.Allowable(from, to) {
		return TransitionNotAllowed{From: from, To: to}
	}
	m.current = to
	for _, h := range m.hooks {
		h(from, to)
	}
	return nil
}

// Reset will return the machine to its initial state without running hooks
func (m *Machine) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.current = m.initial
}

func contains(s State, all []State) bool {
	for _, a := range all {
		if s == a {
			return true
		}
	}
	return false
}
