// Package notify formats arbitrage alerts and delivers them through a rate-limited queue.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"arbscan/internal/model"
	"arbscan/internal/ratelimit"
)

// DefaultMinSpread is the lowest spread, in percent, that triggers an alert.
const DefaultMinSpread = 0.5

// Stats counts the outcome of one Drain.
type Stats struct {
	Sent   int
	Failed int
}

// Dispatcher queues alerts and drains them one at a time through a gate, so the messaging API
// never sees more than one message per interval.
type Dispatcher struct {
	senders   []Sender
	gate      *ratelimit.Gate
	minSpread float64
	logger    *slog.Logger

	mu    sync.Mutex
	queue []model.Opportunity
}

// NewDispatcher creates a Dispatcher delivering to every sender.
func NewDispatcher(senders []Sender, gate *ratelimit.Gate, minSpread float64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders:   senders,
		gate:      gate,
		minSpread: minSpread,
		logger:    logger.With("component", "notifier"),
	}
}

// Enqueue queues o when its spread reaches the notification threshold and reports whether it did.
func (d *Dispatcher) Enqueue(o model.Opportunity) bool {
	if o.BestSpread < d.minSpread {
		d.logger.Debug("Below notification threshold", "symbol", o.Symbol, "spread", o.BestSpread, "threshold", d.minSpread)
		return false
	}
	d.mu.Lock()
	d.queue = append(d.queue, o)
	d.mu.Unlock()
	return true
}

// Len returns the number of queued alerts.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Drain delivers every queued alert in order. Delivery failures are logged and counted; only
// context cancellation stops the loop early, leaving the rest queued.
func (d *Dispatcher) Drain(ctx context.Context) (Stats, error) {
	var stats Stats
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return stats, nil
		}
		next := d.queue[0]
		d.mu.Unlock()

		if err := d.gate.Wait(ctx); err != nil {
			return stats, fmt.Errorf("notify: drain: %w", err)
		}

		d.mu.Lock()
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if err := d.deliver(ctx, Title(next), Format(next)); err != nil {
			stats.Failed++
			d.logger.Error("Failed to deliver notification", "symbol", next.Symbol, "error", err)
			continue
		}
		stats.Sent++
		d.logger.Info("Notification sent", "symbol", next.Symbol, "spread", next.BestSpread)
	}
}

// SendTest delivers a fixed test alert immediately, to check credentials at startup.
func (d *Dispatcher) SendTest(ctx context.Context) error {
	o := TestOpportunity()
	if err := d.gate.Wait(ctx); err != nil {
		return fmt.Errorf("notify: test: %w", err)
	}
	return d.deliver(ctx, Title(o), Format(o))
}

func (d *Dispatcher) deliver(ctx context.Context, title, text string) error {
	var errs []error
	for _, s := range d.senders {
		if err := s.Send(ctx, title, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrDeliveryFailed, errors.Join(errs...))
	}
	return nil
}
