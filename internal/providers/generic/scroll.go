package generic

import (
	"context"
	"fmt"
	"time"

	"github.com/brogergvhs/mangacrawl/internal/browser"
)

// ScrollPolicy drives scrollToConvergence. The page is scrolled by Step
// pixels every Interval; it has converged once the vertical offset stayed
// the same for StableSteps samples in a row. Timeout ends the loop
// regardless.
type ScrollPolicy struct {
	Step        int
	Interval    time.Duration
	StableSteps int
	Timeout     time.Duration
}

func DefaultScrollPolicy() ScrollPolicy {
	return ScrollPolicy{
		Step:        800,
		Interval:    400 * time.Millisecond,
		StableSteps: 3,
		Timeout:     90 * time.Second,
	}
}

func (p ScrollPolicy) withDefaults() ScrollPolicy {
	def := DefaultScrollPolicy()

	if p.Step <= 0 {
		p.Step = def.Step
	}
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	if p.StableSteps <= 0 {
		p.StableSteps = def.StableSteps
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}

	return p
}

type ScrollOutcome int

const (
	ScrollConverged ScrollOutcome = iota
	ScrollTimedOut
	ScrollCanceled
)

func (o ScrollOutcome) String() string {
	switch o {
	case ScrollConverged:
		return "converged"
	case ScrollTimedOut:
		return "timed out"
	case ScrollCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// scrollToConvergence scrolls page down until the offset stops moving.
// Failed samples do not count towards stability. Every script runs under
// the policy timeout, so a hung page cannot hold the loop past it. It
// returns the outcome and the number of samples taken.
func scrollToConvergence(ctx context.Context, page browser.Page, policy ScrollPolicy) (ScrollOutcome, int) {
	script := fmt.Sprintf(`(() => { window.scrollBy(0, %d); return window.scrollY; })()`, policy.Step)

	sctx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()
	tick := time.NewTicker(policy.Interval)
	defer tick.Stop()

	ended := func() (ScrollOutcome, bool) {
		switch {
		case ctx.Err() != nil:
			return ScrollCanceled, true
		case sctx.Err() != nil:
			return ScrollTimedOut, true
		}
		return 0, false
	}

	var (
		last    float64
		sampled bool
		stable  int
		steps   int
	)
	for {
		var y float64
		if err := page.Evaluate(sctx, script, &y); err == nil {
			steps++
			if sampled && y == last {
				stable++
			} else {
				stable = 0
			}
			last, sampled = y, true

			if stable >= policy.StableSteps {
				return ScrollConverged, steps
			}
		}
		if outcome, done := ended(); done {
			return outcome, steps
		}

		select {
		case <-sctx.Done():
			outcome, _ := ended()
			return outcome, steps
		case <-tick.C:
		}
	}
}
