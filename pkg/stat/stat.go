// Package stat computes the window statistics shown for each channel and the frequency
// stability (Allan deviation) of a window.
package stat

import (
	"errors"
	"math"
)

// ErrWindow is returned by MovingAverage when the averaging width is below one.
var ErrWindow = errors.New("stat: moving average width must be >= 1")

// Summary describes one channel window.  Mean and StdDev are NaN for an empty window.
type Summary struct {
	Count   int
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
	Current float64
	// Drift is the least squares slope per sample interval.  NaN below two values.
	Drift float64
}

// MeanAndStdDev returns the population mean and standard deviation (dividing by n, not
// n-1).  Both are NaN when the window is empty; callers check the length first.
func MeanAndStdDev(window []float64) (mean float64, stddev float64) {
	if len(window) == 0 {
		return math.NaN(), math.NaN()
	}
	mean = Sum(window) / float64(len(window))
	return mean, math.Sqrt(variance(window, mean))
}

func variance(values []float64, mean float64) float64 {
	s := 0.0
	for _, v := range values {
		d := v - mean
		s += d * d
	}
	return s / float64(len(values))
}

// MovingAverage smooths a window with a trailing average of width w.  The output has the
// same length as the input; near the start the average shrinks to the values available,
// so the first output equals the first input.
func MovingAverage(window []float64, w int) ([]float64, error) {
	if w < 1 {
		return nil, ErrWindow
	}
	out := make([]float64, len(window))
	for i := range window {
		start := i - w + 1
		if start < 0 {
			start = 0
		}
		out[i] = Sum(window[start:i+1]) / float64(i+1-start)
	}
	return out, nil
}

// Summarize returns the count, population mean and standard deviation, range and most
// recent value of a window.
func Summarize(window []float64) Summary {
	if len(window) == 0 {
		return Summary{Mean: math.NaN(), StdDev: math.NaN(), Drift: math.NaN()}
	}
	mean, stddev := MeanAndStdDev(window)
	return Summary{
		Count:   len(window),
		Mean:    mean,
		StdDev:  stddev,
		Min:     Min(window),
		Max:     Max(window),
		Current: window[len(window)-1],
		Drift:   Drift(window),
	}
}

// Drift fits a line to the window against the sample index and returns its slope.
func Drift(window []float64) float64 {
	xs := make([]float64, len(window))
	for i := range xs {
		xs[i] = float64(i)
	}
	return Slope(xs, window)
}

// Slope is the least squares fit of ys on xs.  It is NaN when there are fewer than two
// points, the lengths differ or every x is the same.
func Slope(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return math.NaN()
	}
	mx := Sum(xs) / float64(len(xs))
	my := Sum(ys) / float64(len(ys))
	var num, den float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		den += (xs[i] - mx) * (xs[i] - mx)
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// Sum adds the window.
func Sum(obs []float64) float64 {
	sum := 0.0
	for _, o := range obs {
		sum += o
	}
	return sum
}

// Min returns the smallest value, or 0 for an empty window.
func Min(obs []float64) float64 {
	if len(obs) == 0 {
		return 0.0
	}
	min := obs[0]
	for _, o := range obs {
		min = math.Min(min, o)
	}
	return min
}

// Max returns the largest value, or 0 for an empty window.
func Max(obs []float64) float64 {
	if len(obs) == 0 {
		return 0.0
	}
	max := obs[0]
	for _, o := range obs {
		max = math.Max(max, o)
	}
	return max
}
