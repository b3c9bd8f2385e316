package rng

import (
	"math/rand"
	"time"
)

var _ RNG = &NormalRNG{}

// NormalRNG generates normally distributed numbers
type NormalRNG struct {
	mean  float64
	stdev float64
	r     *rand.Rand
}

func (r *NormalRNG) Rand() float64 {
	return r.r.NormFloat64()*r.stdev + r.mean
}

// NewNormalRNG is seeded from the clock.
func NewNormalRNG(mean float64, stdev float64) *NormalRNG {
	return NewSeededNormalRNG(mean, stdev, time.Now().UnixNano())
}

// NewSeededNormalRNG returns a generator that always produces the same sequence for a seed.
func NewSeededNormalRNG(mean float64, stdev float64, seed int64) *NormalRNG {
	return &NormalRNG{
		mean:  mean,
		stdev: stdev,
		r:     rand.New(rand.NewSource(seed)),
	}
}
