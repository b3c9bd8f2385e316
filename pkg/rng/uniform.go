package rng

import (
	"math/rand"
	"time"
)

var _ RNG = &UniformRNG{}

// UniformRNG generates numbers uniformly distributed in [0, 1)
type UniformRNG struct {
	r *rand.Rand
}

func (r *UniformRNG) Rand() float64 {
	return r.r.Float64()
}

// Chance reports true with probability p.
func (r *UniformRNG) Chance(p float64) bool {
	return r.Rand() < p
}

func NewUniformRNG() *UniformRNG {
	return NewSeededUniformRNG(time.Now().UnixNano())
}

func NewSeededUniformRNG(seed int64) *UniformRNG {
	return &UniformRNG{r: rand.New(rand.NewSource(seed))}
}
