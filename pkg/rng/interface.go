// Package rng provides the random sources used by the oscillator simulator and by tests
// that need reproducible noise.
package rng

// RNG is a random number generator
type RNG interface {
	Rand() float64
}
