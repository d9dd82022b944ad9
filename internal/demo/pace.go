package demo

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// pacer slows simulated steps down to something a human can watch. The
// limiter is shared by all workers so the whole build respects one rate.
type pacer struct {
	delay   time.Duration
	limiter *rate.Limiter
}

func newPacer(delay time.Duration, stepsPerSecond float64) *pacer {
	p := &pacer{delay: delay}
	if stepsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(stepsPerSecond), 1)
	}
	return p
}

func (p *pacer) wait(ctx context.Context) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
