package fsm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	t1 := Transition{
		From: State("test"),
		To:   State("success"),
	}
	t1_2 := []Transition{t1, t1}
	var tt = []struct {
		in  [][]Transition
		out []Transition
	}{
		{in: [][]Transition{t1_2, t1_2}, out: []Transition{t1, t1, t1, t1}},
	}

	for _, case1 := range tt {
		out := flatten(case1.in)
		assert.Equal(t, case1.out, out, "should flatten nested transition statements")
	}
}

func TestMachineCreation(t *testing.T) {
	var expect = map[State][]State{
		State("initial"):    {State("processing")},
		State("processing"): {State("error"), State("finished")},
	}
	m, err := NewMachine(State("initial"), WithTransition(Transition{State("initial"), State("processing")}),
		WithTransitions(T(State("processing"), State("error"), State("finished"))))
	assert.NoError(t, err)
	assert.Equal(t, expect, m.allowable)
}

func TestSessionTransitions(t *testing.T) {
	tt := []struct {
		name    string
		path    []State
		allowed []bool
		final   State
	}{
		{name: "start", path: []State{Monitoring}, allowed: []bool{true}, final: Monitoring},
		{name: "start stop restart", path: []State{Monitoring, Stopped, Monitoring}, allowed: []bool{true, true, true}, final: Monitoring},
		{name: "stop before start", path: []State{Stopped}, allowed: []bool{false}, final: Idle},
		{name: "double start", path: []State{Monitoring, Monitoring}, allowed: []bool{true, false}, final: Monitoring},
		{name: "no return to idle", path: []State{Monitoring, Stopped, Idle}, allowed: []bool{true, true, false}, final: Stopped},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewSession()
			require.NoError(t, err)
			assert.True(t, m.Is(Idle))
			for i, to := range tc.path {
				err := m.Transition(to)
				if tc.allowed[i] {
					assert.NoError(t, err)
					continue
				}
				var notAllowed TransitionNotAllowed
				assert.ErrorAs(t, err, &notAllowed)
			}
			assert.Equal(t, tc.final, m.State())
		})
	}
}

func TestTransitionNotAllowedMessage(t *testing.T) {
	m, _ := NewSession()
	err := m.Transition(Stopped)
	assert.EqualError(t, err, "cannot transition from state idle to stopped")
}

func TestHooksAndReset(t *testing.T) {
	var seen []Transition
	m, err := NewSession(WithHook(func(from, to State) {
		seen = append(seen, Transition{From: from, To: to})
	}))
	require.NoError(t, err)

	assert.NoError(t, m.Transition(Monitoring))
	assert.Error(t, m.Transition(Idle))
	assert.NoError(t, m.Transition(Stopped))
	assert.Equal(t, []Transition{{Idle, Monitoring}, {Monitoring, Stopped}}, seen)

	m.Reset()
	assert.Equal(t, Idle, m.State())
	assert.Len(t, seen, 2)
}

func TestConcurrentTransitions(t *testing.T) {
	m, _ := NewSession()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Transition(Monitoring) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, Monitoring, m.State())
}
