// Package ratelimit gates outbound calls to a fixed rate, independent of the code making them.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Gate admits one call per interval, with an optional burst. All reservations are made against
// the gate's Clock so the schedule is deterministic under a FakeClock.
type Gate struct {
	name    string
	limiter *rate.Limiter
	clock   Clock
}

// NewGate creates a gate allowing one call every interval. A non-positive interval disables
// throttling. Burst values below 1 are treated as 1.
func NewGate(name string, interval time.Duration, burst int, clock Clock) *Gate {
	if clock == nil {
		clock = RealClock{}
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{
		name:    name,
		limiter: rate.NewLimiter(limit, burst),
		clock:   clock,
	}
}

// Name identifies the gate in logs.
func (g *Gate) Name() string {
	return g.name
}

// Wait blocks until the gate admits the caller or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	now := g.clock.Now()
	r := g.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("ratelimit: %s: reservation refused", g.name)
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	select {
	case <-g.clock.After(delay):
		return nil
	case <-ctx.Done():
		r.CancelAt(g.clock.Now())
		return fmt.Errorf("ratelimit: %s: %w", g.name, ctx.Err())
	}
}
