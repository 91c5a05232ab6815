// Package sink writes ranked opportunities out of the process: a timestamped CSV table on
// disk and, optionally, an archived copy in S3-compatible object storage.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"arbscan/internal/model"
)

// Sink persists the ranked opportunities of one scan and returns where they went.
type Sink interface {
	Write(ctx context.Context, run model.ScanRun, rows []model.Opportunity) (string, error)
	Name() string
}

// Multi writes to every sink in order. A failing sink is logged and does not stop the others.
type Multi struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMulti creates a Multi over sinks.
func NewMulti(logger *slog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger.With("component", "sink")}
}

func (m *Multi) Name() string {
	return "multi"
}

// Write returns the location reported by the first successful sink. The error, if any,
// wraps model.ErrDeliveryFailed and joins every sink failure.
func (m *Multi) Write(ctx context.Context, run model.ScanRun, rows []model.Opportunity) (string, error) {
	var (
		location string
		errs     []error
	)
	for _, s := range m.sinks {
		loc, err := s.Write(ctx, run, rows)
		if err != nil {
			m.logger.Error("Failed to write results", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		m.logger.Info("Results written", "sink", s.Name(), "location", loc, "rows", len(rows))
		if location == "" {
			location = loc
		}
	}
	if len(errs) > 0 {
		return location, fmt.Errorf("%w: %w", model.ErrDeliveryFailed, errors.Join(errs...))
	}
	return location, nil
}
