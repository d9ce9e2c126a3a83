// Package pacer spaces out calls to rate-limited providers.
package pacer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/etnz/folio/clock"
)

// Pacer guarantees a minimum interval between two consecutive calls to Wait.
// One Pacer is shared by all the requests sent to the same provider.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
	clock    clock.Clock
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(p *Pacer) { p.clock = c }
}

// New returns a Pacer letting one call through every interval. A zero or
// negative interval disables pacing.
func New(interval time.Duration, opts ...Option) *Pacer {
	p := &Pacer{
		interval: interval,
		clock:    clock.System,
	}
	if interval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(interval), 1)
	} else {
		p.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the minimum interval between two calls.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("pacer cannot grant a request every %v", p.interval)
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		r.CancelAt(p.clock.Now())
		return ctx.Err()
	case <-p.clock.After(delay):
		return nil
	}
}
