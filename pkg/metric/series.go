package metric

import (
	"fmt"
)

// Series is a fixed-capacity ring of observations.  Once full, each new observation
// overwrites the oldest one.
type Series struct {
	name   string
	count  int
	values []float64
}

type SeriesOption func(s *Series) error

// Values returns a copy of the retained observations in temporal order from oldest to most
// recent.  The copy holds at most Cap() values and never includes unfilled slots.
func (s *Series) Values() []float64 {
	out := make([]float64, 0, s.Len())
	if s.count < len(s.values) {
		return append(out, s.values[:s.count]...)
	}
	oldest := s.nextIndex()
	return append(append(out, s.values[oldest:]...), s.values[:oldest]...)
}

// Record adds a new observation to the series
func (s *Series) Record(p float64) {
	if len(s.values) == 0 {
		return
	}

	s.values[s.nextIndex()] = p
	s.count++
}

// Last returns the most recent observation, or false if nothing has been recorded.
func (s *Series) Last() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.values[(s.count-1)%len(s.values)], true
}

// nextIndex returns the index of the oldest observation in the series to be overwritten by new data
func (s *Series) nextIndex() int {
	if len(s.values) == 0 {
		return 0
	}
	return s.count % len(s.values)
}

// Count returns the total number of observations for this series, including the ones that
// have already been overwritten.
func (s *Series) Count() int {
	return s.count
}

// Len returns the number of retained observations.
func (s *Series) Len() int {
	if s.count < len(s.values) {
		return s.count
	}
	return len(s.values)
}

// Cap returns the capacity of the series.
func (s *Series) Cap() int {
	return len(s.values)
}

// Reset drops all observations and keeps the capacity.
func (s *Series) Reset() {
	s.count = 0
	for i := range s.values {
		s.values[i] = 0
	}
}

// Name returns the name of the series
func (s *Series) Name() string {
	return s.name
}

// NewSeries creates a new series with a capacity of cap
func NewSeries(cap int, opts ...SeriesOption) (*Series, error) {
	if cap <= 0 {
		return nil, fmt.Errorf("series must be initialized with a capacity >= 1")
	}

	s := &Series{
		values: make([]float64, cap),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithName sets the name of the series
func WithName(name string) SeriesOption {
	return func(s *Series) error {
		if name == "" {
			return fmt.Errorf("series name must be the non-empty string")
		}
		s.name = name
		return nil
	}
}

// WithValues initializes a series from an existing set of observations.  The number of observations does not
// have to be equal to the capacity.
func WithValues(values []float64) SeriesOption {
	return func(s *Series) error {
		for _, v := range values {
			s.Record(v)
		}
		return nil
	}
}
