// Package view maps a display mode onto the pair of channels a consumer should draw.
package view

import (
	"errors"
	"fmt"

	"github.com/BTBurke/oscmon/pkg/store"
)

// ErrAllanMode is returned by Project in Allan mode.  The consumer draws the Allan curve of
// the selected target instead of raw channels.
var ErrAllanMode = errors.New("view: allan mode has no channel projection")

// Mode selects which channels are shown.
type Mode int

const (
	FreqTemp Mode = iota
	Electrical
	Status
	Allan
)

// Modes lists every mode in cycling order.
var Modes = []Mode{FreqTemp, Electrical, Status, Allan}

var modeNames = map[Mode]string{
	FreqTemp:   "freq-temp",
	Electrical: "electrical",
	Status:     "status",
	Allan:      "allan",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Next returns the mode after m, wrapping around.
func (m Mode) Next() Mode {
	return Modes[(int(m)+1)%len(Modes)]
}

// ParseMode accepts the names printed by String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return FreqTemp, fmt.Errorf("unknown display mode %q (want freq-temp, electrical, status or allan)", s)
}

// Target is the channel the Allan deviation is computed over.
type Target int

const (
	Frequency Target = iota
	Temperature
)

func (t Target) String() string {
	switch t {
	case Frequency:
		return "frequency"
	case Temperature:
		return "temperature"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// Channel is the store channel backing the target.
func (t Target) Channel() store.Channel {
	if t == Temperature {
		return store.Temperature
	}
	return store.FrequencyError
}

// Toggle switches between the two targets.
func (t Target) Toggle() Target {
	if t == Frequency {
		return Temperature
	}
	return Frequency
}

// ParseTarget accepts the names printed by String.
func ParseTarget(s string) (Target, error) {
	switch s {
	case "frequency":
		return Frequency, nil
	case "temperature":
		return Temperature, nil
	default:
		return Frequency, fmt.Errorf("unknown allan target %q (want frequency or temperature)", s)
	}
}

// Reader is the read side of the channel store.
type Reader interface {
	Window(ch store.Channel) []float64
}

// Projection is the labelled pair of series for one mode.
type Projection struct {
	Mode    Mode
	LabelA  string
	SeriesA []float64
	LabelB  string
	SeriesB []float64
}

type pair struct {
	a, b store.Channel
}

var projections = map[Mode]pair{
	FreqTemp:   {store.FrequencyError, store.Temperature},
	Electrical: {store.Voltage, store.Current},
	Status:     {store.LockStatus, store.HoldoverStatus},
}

// Project reads the two channels for mode.  It has no side effects, so repeated calls
// against an unchanged store return equal projections.
func Project(r Reader, mode Mode) (Projection, error) {
	if mode == Allan {
		return Projection{Mode: Allan}, ErrAllanMode
	}
	p, ok := projections[mode]
	if !ok {
		return Projection{}, fmt.Errorf("view: unknown mode %d", int(mode))
	}
	out := Projection{
		Mode:    mode,
		LabelA:  p.a.String(),
		SeriesA: r.Window(p.a),
		LabelB:  p.b.String(),
		SeriesB: r.Window(p.b),
	}
	if mode == Status {
		out.SeriesA = bits(out.SeriesA)
		out.SeriesB = bits(out.SeriesB)
	}
	return out, nil
}

func bits(values []float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if v != 0 {
			out[i] = 1
		}
	}
	return out
}
