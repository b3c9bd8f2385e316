package pipeline

import (
	"errors"
	"fmt"

	"github.com/prometheus/common/log"

	"github.com/BTBurke/oscmon/pkg/alert"
	"github.com/BTBurke/oscmon/pkg/eventbus"
	"github.com/BTBurke/oscmon/pkg/view"
)

// ErrNoStore is returned by New without a store.
var ErrNoStore = errors.New("pipeline: store is required")

// Option configures a pipeline
type Option func(p *Pipeline) error

// WithAllanEvery sets how many retained samples separate Allan recomputations.
func WithAllanEvery(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("pipeline: allan interval must be >= 1, got %d", n)
		}
		p.every = n
		return nil
	}
}

// WithTarget selects the initial Allan target.
func WithTarget(t view.Target) Option {
	return func(p *Pipeline) error {
		p.target = t
		return nil
	}
}

// WithBus publishes an Update after every ingest.
func WithBus(bus *eventbus.EventBus) Option {
	return func(p *Pipeline) error {
		p.bus = bus
		return nil
	}
}

// WithAlerts checks every sample against c and publishes state changes on TopicAlerts.
func WithAlerts(c *alert.Checker) Option {
	return func(p *Pipeline) error {
		p.alerts = c
		return nil
	}
}

// WithClock replaces time.Now as the arrival time of samples without a timestamp.
func WithClock(c Clock) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("pipeline: clock cannot be nil")
		}
		p.clock = c
		return nil
	}
}

// WithLogger replaces the default component logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) error {
		p.log = l
		return nil
	}
}
