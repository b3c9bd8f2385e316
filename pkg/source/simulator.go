package source

import (
	"context"
	"math"
	"time"

	"github.com/BTBurke/oscmon/pkg/rng"
	"github.com/BTBurke/oscmon/pkg/sample"
)

// Simulator defaults, matching the behavior of the bench demo module.
const (
	DefaultDrift        = 0.0001
	DefaultLockRate     = 0.98
	DefaultHoldoverRate = 0.05
)

// Simulator generates plausible oscillator readings: a frequency error that walks away with a
// growing drift, a temperature cycling around 25 C, noisy supply readings and occasional loss
// of lock or holdover.
type Simulator struct {
	interval time.Duration
	drift    float64
	lockRate float64
	holdRate float64

	freqNoise rng.RNG
	tempNoise rng.RNG
	voltNoise rng.RNG
	currNoise rng.RNG
	flags     *rng.UniformRNG

	k    int
	freq float64
}

// SimulatorOption configures a simulator
type SimulatorOption func(s *Simulator)

// WithSeed makes the generated sequence reproducible.
func WithSeed(seed int64) SimulatorOption {
	return func(s *Simulator) {
		s.freqNoise = rng.NewSeededNormalRNG(0, 1e-5, seed)
		s.tempNoise = rng.NewSeededNormalRNG(0, 0.1, seed+1)
		s.voltNoise = rng.NewSeededNormalRNG(0, 0.05, seed+2)
		s.currNoise = rng.NewSeededNormalRNG(0, 0.02, seed+3)
		s.flags = rng.NewSeededUniformRNG(seed + 4)
	}
}

// WithDrift scales the per-tick growth of the frequency drift.
func WithDrift(d float64) SimulatorOption {
	return func(s *Simulator) {
		s.drift = d
	}
}

// WithRates sets the probability of being locked and of being in holdover on each reading.
func WithRates(lock, holdover float64) SimulatorOption {
	return func(s *Simulator) {
		s.lockRate = lock
		s.holdRate = holdover
	}
}

// NewSimulator returns a simulator producing one reading per interval.
func NewSimulator(interval time.Duration, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		interval:  interval,
		drift:     DefaultDrift,
		lockRate:  DefaultLockRate,
		holdRate:  DefaultHoldoverRate,
		freqNoise: rng.NewNormalRNG(0, 1e-5),
		tempNoise: rng.NewNormalRNG(0, 0.1),
		voltNoise: rng.NewNormalRNG(0, 0.05),
		currNoise: rng.NewNormalRNG(0, 0.02),
		flags:     rng.NewUniformRNG(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next advances the simulated module by one tick.
func (s *Simulator) Next(now time.Time) sample.Sample {
	s.k++
	k := float64(s.k)
	s.freq += s.drift*k + s.freqNoise.Rand()

	smp := sample.Sample{
		Timestamp:      now,
		FrequencyError: s.freq,
		Temperature:    25 + 2*math.Sin(0.1*k) + s.tempNoise.Rand(),
		Voltage:        12 + s.voltNoise.Rand(),
		Current:        0.5 + s.currNoise.Rand(),
		LockStatus:     s.flags.Chance(s.lockRate),
		HoldoverStatus: s.flags.Chance(s.holdRate),
	}
	switch {
	case smp.HoldoverStatus:
		smp.Status = "HOLDOVER"
	case smp.LockStatus:
		smp.Status = "LOCKED"
	default:
		smp.Status = "UNLOCKED"
	}
	return smp
}

// Run emits one reading per interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, out chan<- sample.Sample) error {
	return Tick(ctx, s.interval, func(_ int, now time.Time) error {
		emit(ctx, out, s.Next(now))
		return nil
	})
}
