package stat

import (
	"errors"
	"math"
)

// MaxTau bounds the averaging times evaluated by Curve.
const MaxTau = 50

// ErrTau is returned when an averaging time below one is requested.
var ErrTau = errors.New("stat: tau must be >= 1")

// AllanPoint is the deviation at one averaging time, in sample intervals.
type AllanPoint struct {
	Tau       int     `json:"tau"`
	Deviation float64 `json:"allan_deviation"`
}

// Curve computes the overlapping Allan deviation of a window for every tau from 1 to
// min(MaxTau, n/2), in increasing order.  A tau whose second difference has no terms is
// skipped, so short windows produce fewer points; windows shorter than two values produce
// none.
//
// The variance is averaged over the number of second differences (no n-1 correction) to
// stay numerically compatible with existing deployments.
func Curve(window []float64) []AllanPoint {
	maxTau := len(window) / 2
	if maxTau > MaxTau {
		maxTau = MaxTau
	}
	if maxTau < 1 {
		return []AllanPoint{}
	}

	out := make([]AllanPoint, 0, maxTau)
	for tau := 1; tau <= maxTau; tau++ {
		if p, ok := deviation(window, tau); ok {
			out = append(out, p)
		}
	}
	return out
}

// CurveTau evaluates a single averaging time.  The boolean is false when the window is
// too short for tau.
func CurveTau(window []float64, tau int) (AllanPoint, bool, error) {
	if tau < 1 {
		return AllanPoint{}, false, ErrTau
	}
	p, ok := deviation(window, tau)
	return p, ok, nil
}

func deviation(window []float64, tau int) (AllanPoint, bool) {
	count := len(window) - 2*tau
	if count <= 0 {
		return AllanPoint{}, false
	}
	sumSq := 0.0
	for i := 0; i < count; i++ {
		d := window[i+2*tau] - 2*window[i+tau] + window[i]
		sumSq += d * d
	}
	t := float64(tau)
	return AllanPoint{
		Tau:       tau,
		Deviation: math.Sqrt(sumSq / (2 * float64(count) * t * t)),
	}, true
}
