// Package store keeps the bounded, multi-channel history of ingested samples.  Every
// channel holds the same number of values at all times; once the capacity is reached each
// append evicts the oldest value of every channel.
package store

import (
	"errors"
	"fmt"

	"github.com/BTBurke/oscmon/pkg/metric"
	"github.com/BTBurke/oscmon/pkg/sample"
)

// DefaultCapacity is the number of samples retained per channel when not configured.
const DefaultCapacity = 100

// ErrCapacity is returned when a store is created with a capacity below one.
var ErrCapacity = errors.New("store: capacity must be >= 1")

// Channel names one sequence of values in the store.
type Channel string

const (
	Timestamps     Channel = "timestamps"
	FrequencyError Channel = "frequency_error"
	Temperature    Channel = "temperature"
	Voltage        Channel = "voltage"
	Current        Channel = "current"
	LockStatus     Channel = "lock_status"
	HoldoverStatus Channel = "holdover_status"
)

// Channels lists every channel in display order.
var Channels = []Channel{Timestamps, FrequencyError, Temperature, Voltage, Current, LockStatus, HoldoverStatus}

func (c Channel) String() string {
	return string(c)
}

// ParseChannel accepts the names printed by String.
func ParseChannel(name string) (Channel, error) {
	for _, ch := range Channels {
		if string(ch) == name {
			return ch, nil
		}
	}
	return "", fmt.Errorf("store: unknown channel %q", name)
}

// ChannelValue is the value a sample contributes to ch.
func ChannelValue(ch Channel, smp sample.Sample) (float64, error) {
	switch ch {
	case Timestamps:
		return smp.Unix(), nil
	case FrequencyError:
		return smp.FrequencyError, nil
	case Temperature:
		return smp.Temperature, nil
	case Voltage:
		return smp.Voltage, nil
	case Current:
		return smp.Current, nil
	case LockStatus:
		return sample.Bit(smp.LockStatus), nil
	case HoldoverStatus:
		return sample.Bit(smp.HoldoverStatus), nil
	}
	return 0, fmt.Errorf("store: unknown channel %q", string(ch))
}

// Store is a fixed-capacity ring per channel.  It is not safe for concurrent writers.
type Store struct {
	capacity int
	series   map[Channel]*metric.Series
}

// New returns an empty store holding at most capacity samples.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	s := &Store{
		capacity: capacity,
		series:   make(map[Channel]*metric.Series, len(Channels)),
	}
	for _, ch := range Channels {
		series, err := metric.NewSeries(capacity, metric.WithName(ch.String()))
		if err != nil {
			return nil, err
		}
		s.series[ch] = series
	}
	return s, nil
}

// Append records one value on every channel.  All channels are rings of the same
// capacity, so when the store is full the oldest value of each one is overwritten in the
// same call.
func (s *Store) Append(smp sample.Sample) {
	for _, ch := range Channels {
		v, _ := ChannelValue(ch, smp)
		s.series[ch].Record(v)
	}
}

// Window returns a copy of the values of one channel, oldest first.  Unknown channels
// return nil.
func (s *Store) Window(ch Channel) []float64 {
	series, ok := s.series[ch]
	if !ok {
		return nil
	}
	return series.Values()
}

// Windows returns a copy of every channel.
func (s *Store) Windows() map[Channel][]float64 {
	out := make(map[Channel][]float64, len(s.series))
	for ch, series := range s.series {
		out[ch] = series.Values()
	}
	return out
}

// Last returns the most recent value of a channel.
func (s *Store) Last(ch Channel) (float64, bool) {
	series, ok := s.series[ch]
	if !ok {
		return 0, false
	}
	return series.Last()
}

// Len is the number of samples currently retained.
func (s *Store) Len() int {
	return s.series[Timestamps].Len()
}

// Cap is the maximum number of samples retained.
func (s *Store) Cap() int {
	return s.capacity
}

// Reset clears every channel.
func (s *Store) Reset() {
	for _, series := range s.series {
		series.Reset()
	}
}
