package source

import (
	"context"
	"errors"
	"time"
)

// ErrInterval is returned for a non-positive tick interval.
var ErrInterval = errors.New("source: interval must be > 0")

// Tick calls fn every d until ctx is done or fn returns an error.  k counts ticks from zero.
// The first call happens after one interval, like time.Ticker.
func Tick(ctx context.Context, d time.Duration, fn func(k int, now time.Time) error) error {
	if d <= 0 {
		return ErrInterval
	}
	t := time.NewTicker(d)
	defer t.Stop()

	for k := 0; ; k++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(k, now); err != nil {
				return err
			}
		}
	}
}
