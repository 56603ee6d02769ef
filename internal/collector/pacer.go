package collector

import (
	"context"
	"time"
)

// DefaultPaceInterval keeps five calls per minute under the free-tier quota.
const DefaultPaceInterval = 12 * time.Second

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer enforces a fixed delay between consecutive provider calls.
// It has no burst allowance and does not adapt to quota headers.
type Pacer struct {
	Interval time.Duration
	Sleep    SleepFunc
}

// NewPacer creates a Pacer with the given interval.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{Interval: interval, Sleep: SleepContext}
}

// Wait blocks for the configured interval.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.Interval <= 0 {
		return nil
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return sleep(ctx, p.Interval)
}
