package browser

import (
	"context"
	"math/rand/v2"
	"time"
)

// Delay is a randomized pause between page loads, used to stay under the
// request rate that trips bot defenses. The zero value never waits.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// Next returns a duration in [Min, Max].
func (d Delay) Next() time.Duration {
	lo, hi := d.Min, d.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}

	return lo + rand.N(hi-lo+1)
}

// Wait sleeps for Next() or until ctx is done.
func (d Delay) Wait(ctx context.Context) error {
	wait := d.Next()
	if wait <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
