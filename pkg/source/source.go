// Package source produces the sample stream fed to a monitor: a simulated oscillator for demos
// and an HTTP poller for a real module's status endpoint.
package source

import (
	"context"

	"github.com/BTBurke/oscmon/pkg/sample"
)

// Source delivers samples on out until ctx is done.  Run returns nil on cancellation and an
// error only when the source cannot continue.
type Source interface {
	Run(ctx context.Context, out chan<- sample.Sample) error
}

// ErrorFunc receives errors a source recovered from, e.g. to forward them to a reporter.
type ErrorFunc func(err error)

// emit sends s unless ctx ends first.  It reports whether the send happened.
func emit(ctx context.Context, out chan<- sample.Sample, s sample.Sample) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
