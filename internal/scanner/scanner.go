// Package scanner runs one arbitrage scan between two exchanges: it reconciles their listings,
// fetches both books per symbol, evaluates and ranks the spreads, then writes, notifies and
// records the outcome.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"arbscan/internal/arbitrage"
	"arbscan/internal/database"
	"arbscan/internal/exchange"
	"arbscan/internal/metrics"
	"arbscan/internal/model"
	"arbscan/internal/notify"
	"arbscan/internal/sink"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options tunes a scan.
type Options struct {
	// Symbols, when set, replaces the reconciled listing.
	Symbols      []string
	Reconcile    arbitrage.ReconcileOptions
	Concurrency  int
	MinVolume24h float64
	Liquidity    arbitrage.LiquidityModel
	Thresholds   arbitrage.Thresholds
	TopN         int
	// DryRun skips sinks and notifications.
	DryRun bool
}

// Deps are the optional outputs of a scan. Nil fields are skipped.
type Deps struct {
	Sink     sink.Sink
	Notifier *notify.Dispatcher
	Repo     database.Repository
	Metrics  *metrics.Recorder
}

// Result is the outcome of one scan.
type Result struct {
	Run    model.ScanRun
	Ranked []model.Opportunity
}

// Scanner compares the books of exchange A and exchange B.
type Scanner struct {
	logger *slog.Logger
	a, b   exchange.MarketDataClient
	calc   *arbitrage.Calculator
	opts   Options
	deps   Deps
	now    func() time.Time
}

// New creates a Scanner for the exchange pair a, b.
func New(logger *slog.Logger, a, b exchange.MarketDataClient, opts Options, deps Deps) *Scanner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scanner{
		logger: logger.With("component", "scanner"),
		a:      a,
		b:      b,
		calc:   arbitrage.NewCalculator(opts.Liquidity),
		opts:   opts,
		deps:   deps,
		now:    time.Now,
	}
}

// resetter is implemented by clients that memoize data for the duration of one scan.
type resetter interface {
	Reset()
}

// tally collects per-symbol outcomes from concurrent workers.
type tally struct {
	mu            sync.Mutex
	opportunities []model.Opportunity
	obtained      int
	fetchFailures int
	evaluated     int
	lowVolume     int
}

// Run performs one scan. It returns an error wrapping model.ErrNoData when no market data
// could be obtained at all, including when ctx ends before the first book arrives; the
// returned Result still carries the aborted run summary.
// A cancelled ctx ends fetching early and the partial results are still ranked and delivered.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	run := model.ScanRun{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
		ExchangeA: s.a.Name(),
		ExchangeB: s.b.Name(),
	}
	logger := s.logger.With("run_id", run.ID)
	for _, c := range []exchange.MarketDataClient{s.a, s.b} {
		if r, ok := c.(resetter); ok {
			r.Reset()
		}
	}
	logger.Info("Scan started", "exchange_a", run.ExchangeA, "exchange_b", run.ExchangeB)

	symbols, err := s.symbols(ctx)
	if err != nil {
		return s.abort(ctx, logger, run, err)
	}
	run.Symbols = len(symbols)
	logger.Info("Symbols reconciled", "count", len(symbols))

	t := s.fanOut(ctx, logger, symbols)
	run.FetchFailures = t.fetchFailures
	run.Evaluated = t.evaluated

	cancelled := ctx.Err() != nil
	if len(symbols) > 0 && t.obtained == 0 {
		cause := fmt.Errorf("%w: %d symbols, every fetch failed", model.ErrNoData, len(symbols))
		if cancelled {
			cause = fmt.Errorf("%w: %d symbols, no order book before %w", model.ErrNoData, len(symbols), ctx.Err())
		}
		return s.abort(ctx, logger, run, cause)
	}

	run.Status = model.ScanCompleted
	if cancelled {
		run.Status = model.ScanPartial
		run.Error = ctx.Err().Error()
		logger.Warn("Scan interrupted, delivering partial results", "evaluated", t.evaluated, "symbols", len(symbols))
	}
	// Partial results must still be delivered after the scan context ends.
	ctx = context.WithoutCancel(ctx)

	ranked := arbitrage.RankAndFilter(t.opportunities, s.opts.Thresholds, s.opts.TopN)
	run.Ranked = len(ranked)
	for i, o := range ranked {
		logger.Info("Ranked opportunity",
			"rank", i+1,
			"symbol", o.Symbol,
			"direction", o.Direction,
			"spread", o.BestSpread,
			"score", o.Score,
		)
	}

	if !s.opts.DryRun {
		run.OutputPath = s.write(ctx, logger, run, ranked)
		run.Notified = s.notify(ctx, logger, ranked)
	}

	run.FinishedAt = s.now()
	s.record(ctx, logger, run)
	logger.Info("Scan finished",
		"status", run.Status,
		"symbols", run.Symbols,
		"fetch_failures", run.FetchFailures,
		"low_volume", t.lowVolume,
		"evaluated", run.Evaluated,
		"opportunities", len(t.opportunities),
		"ranked", run.Ranked,
		"notified", run.Notified,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)
	return Result{Run: run, Ranked: ranked}, nil
}

func (s *Scanner) abort(ctx context.Context, logger *slog.Logger, run model.ScanRun, err error) (Result, error) {
	run.Status = model.ScanAborted
	run.Error = err.Error()
	run.FinishedAt = s.now()
	logger.Error("Scan aborted", "error", err)
	s.record(context.WithoutCancel(ctx), logger, run)
	return Result{Run: run}, err
}

func (s *Scanner) symbols(ctx context.Context) ([]string, error) {
	if len(s.opts.Symbols) > 0 {
		symbols := make([]string, 0, len(s.opts.Symbols))
		for _, sym := range s.opts.Symbols {
			if base, quote, ok := arbitrage.SplitSymbol(strings.TrimSpace(sym)); ok {
				symbols = append(symbols, arbitrage.NormalizeSymbol(base, quote))
			}
		}
		slices.Sort(symbols)
		return slices.Compact(symbols), nil
	}

	var listA, listB []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if listA, err = s.a.ListSymbols(gctx); err != nil {
			return fmt.Errorf("%w: list symbols on %s: %w", model.ErrNoData, s.a.Name(), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if listB, err = s.b.ListSymbols(gctx); err != nil {
			return fmt.Errorf("%w: list symbols on %s: %w", model.ErrNoData, s.b.Name(), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return arbitrage.CommonSymbols(listA, listB, s.opts.Reconcile), nil
}

func (s *Scanner) fanOut(ctx context.Context, logger *slog.Logger, symbols []string) *tally {
	t := &tally{}
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		symbol := symbol
		g.Go(func() error {
			s.scanSymbol(ctx, logger, symbol, t)
			return nil
		})
	}
	_ = g.Wait()
	return t
}

func (s *Scanner) scanSymbol(ctx context.Context, logger *slog.Logger, symbol string, t *tally) {
	logger = logger.With("symbol", symbol)

	var bookA, bookB model.OrderBookSnapshot
	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bookA, errA = s.a.FetchOrderBook(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		bookB, errB = s.b.FetchOrderBook(ctx, symbol)
	}()
	wg.Wait()

	if errA == nil || errB == nil {
		t.mu.Lock()
		t.obtained++
		t.mu.Unlock()
	}
	if errA != nil || errB != nil {
		if ctx.Err() != nil {
			return
		}
		s.fetchFailed(logger, s.a.Name(), errA)
		s.fetchFailed(logger, s.b.Name(), errB)
		t.mu.Lock()
		t.fetchFailures++
		t.mu.Unlock()
		return
	}

	if s.opts.MinVolume24h > 0 && (bookA.Volume24h < s.opts.MinVolume24h || bookB.Volume24h < s.opts.MinVolume24h) {
		logger.Debug("Skipping low volume symbol", "volume_a", bookA.Volume24h, "volume_b", bookB.Volume24h)
		t.mu.Lock()
		t.lowVolume++
		t.mu.Unlock()
		return
	}

	base, _, _ := arbitrage.SplitSymbol(symbol)
	netsA := s.networks(ctx, logger, s.a, base)
	netsB := s.networks(ctx, logger, s.b, base)

	o, err := s.calc.Evaluate(symbol, bookA, bookB, netsA, netsB)
	found := err == nil
	switch {
	case err == nil:
		logger.Debug("Opportunity found", "direction", o.Direction, "spread", o.BestSpread)
	case errors.Is(err, model.ErrNoOpportunity):
	case errors.Is(err, model.ErrDataUnavailable):
		logger.Warn("Unusable order book", "error", err)
		t.mu.Lock()
		t.fetchFailures++
		t.mu.Unlock()
		return
	default:
		logger.Error("Failed to evaluate symbol", "error", err)
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.Evaluated(found)
	}
	t.mu.Lock()
	t.evaluated++
	if found {
		t.opportunities = append(t.opportunities, o)
	}
	t.mu.Unlock()
}

func (s *Scanner) fetchFailed(logger *slog.Logger, exchangeName string, err error) {
	if err == nil {
		return
	}
	logger.Warn("Failed to fetch order book", "exchange", exchangeName, "error", err)
	if s.deps.Metrics != nil {
		s.deps.Metrics.FetchFailed(exchangeName)
	}
}

// networks degrades to an empty set: missing network data narrows the supported list but
// never drops the symbol.
func (s *Scanner) networks(ctx context.Context, logger *slog.Logger, client exchange.MarketDataClient, asset string) model.NetworkSet {
	set, err := client.FetchNetworks(ctx, asset)
	if err != nil {
		logger.Warn("Failed to fetch networks", "exchange", client.Name(), "asset", asset, "error", err)
		return model.NetworkSet{}
	}
	return set
}

func (s *Scanner) write(ctx context.Context, logger *slog.Logger, run model.ScanRun, ranked []model.Opportunity) string {
	if s.deps.Sink == nil {
		return ""
	}
	location, err := s.deps.Sink.Write(ctx, run, ranked)
	if err != nil {
		logger.Error("Failed to persist results", "error", err)
	}
	return location
}

func (s *Scanner) notify(ctx context.Context, logger *slog.Logger, ranked []model.Opportunity) int {
	if s.deps.Notifier == nil {
		return 0
	}
	for _, o := range ranked {
		s.deps.Notifier.Enqueue(o)
	}
	stats, err := s.deps.Notifier.Drain(ctx)
	if err != nil {
		logger.Error("Notification drain stopped", "error", err)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Notified(stats.Sent, stats.Failed)
	}
	return stats.Sent
}

func (s *Scanner) record(ctx context.Context, logger *slog.Logger, run model.ScanRun) {
	if s.deps.Repo != nil {
		if err := s.deps.Repo.LogRun(ctx, run); err != nil {
			logger.Error("Failed to record scan run", "error", err)
		}
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveRun(run)
		if err := s.deps.Metrics.Push(ctx); err != nil {
			logger.Error("Failed to push metrics", "error", err)
		}
	}
}
