package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"arbscan/internal/arbitrage"
	"arbscan/internal/cache"
	"arbscan/internal/config"
	"arbscan/internal/database"
	"arbscan/internal/exchange"
	"arbscan/internal/metrics"
	"arbscan/internal/model"
	"arbscan/internal/notify"
	"arbscan/internal/ratelimit"
	"arbscan/internal/scanner"
	"arbscan/internal/sink"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	once := flag.Bool("once", true, "run a single scan and exit")
	every := flag.Duration("every", 5*time.Minute, "delay between scans when -once=false")
	testNotify := flag.Bool("test-notify", false, "send a test notification and exit")
	dryRun := flag.Bool("dry-run", false, "scan without writing results or sending notifications")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Cannot load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *once, *every, *testNotify, *dryRun); err != nil {
		logger.Error("Exiting", "error", err)
		if errors.Is(err, model.ErrFatalSetup) {
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config, once bool, every time.Duration, testNotify, dryRun bool) error {
	dispatcher := newDispatcher(logger, cfg.Notify)
	if testNotify {
		if err := dispatcher.SendTest(ctx); err != nil {
			return fmt.Errorf("%w: test notification: %w", model.ErrFatalSetup, err)
		}
		logger.Info("Test notification sent")
		return nil
	}

	var store exchange.NetworkStore
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisNetworkCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			logger.Warn("Network cache unavailable, continuing without it", "error", err)
		} else {
			defer redisCache.Close()
			store = redisCache
		}
	}

	normalizer := exchange.NewNetworkNormalizer(cfg.Scan.NetworkAliases)
	clients := make([]exchange.MarketDataClient, 0, 2)
	for _, name := range []string{cfg.Scan.ExchangeA, cfg.Scan.ExchangeB} {
		name = strings.ToLower(name)
		exCfg, ok := cfg.Exchanges[name]
		if !ok {
			return fmt.Errorf("%w: exchange %s is not configured", model.ErrFatalSetup, name)
		}
		client, err := exchange.NewClient(name, logger, &exCfg, normalizer, ratelimit.RealClock{})
		if err != nil {
			return err
		}
		clients = append(clients, exchange.NewCached(client, store, logger))
	}

	deps := scanner.Deps{Notifier: dispatcher}
	if !cfg.Notify.Enabled {
		deps.Notifier = nil
	}

	sinks := []sink.Sink{sink.NewCSVSink(cfg.Output.Dir, cfg.Output.Prefix)}
	if s3cfg := cfg.Output.S3; s3cfg.Enabled {
		archiver, err := sink.NewS3Archiver(ctx, sink.S3Config{
			Endpoint:       s3cfg.Endpoint,
			Region:         s3cfg.Region,
			Bucket:         s3cfg.Bucket,
			KeyPrefix:      s3cfg.KeyPrefix,
			AccessKey:      s3cfg.AccessKey,
			SecretKey:      s3cfg.SecretKey,
			ForcePathStyle: s3cfg.ForcePathStyle,
			Prefix:         cfg.Output.Prefix,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrFatalSetup, err)
		}
		sinks = append(sinks, archiver)
	}
	deps.Sink = sink.NewMulti(logger, sinks...)

	if cfg.Database.Enabled() {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database.ConnString())
		if err != nil {
			logger.Warn("Run ledger unavailable, continuing without it", "error", err)
		} else {
			defer repo.Close()
			if err := repo.Migrate(ctx); err != nil {
				logger.Warn("Run ledger migration failed, continuing without it", "error", err)
			} else {
				deps.Repo = repo
			}
		}
	}

	if cfg.Metrics.PushgatewayURL != "" {
		deps.Metrics = metrics.NewRecorder(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
	}

	opts := scanner.Options{
		Symbols: cfg.Scan.Symbols,
		Reconcile: arbitrage.ReconcileOptions{
			QuoteAsset: cfg.Scan.QuoteAsset,
			Exclude:    cfg.Scan.Exclude,
			AliasesA:   cfg.Scan.AliasesA,
			AliasesB:   cfg.Scan.AliasesB,
		},
		Concurrency:  cfg.Scan.Concurrency,
		MinVolume24h: cfg.Scan.MinVolume24h,
		Liquidity:    cfg.Arbitrage.Liquidity,
		Thresholds:   cfg.Arbitrage.Thresholds(),
		TopN:         cfg.Arbitrage.TopN,
		DryRun:       dryRun,
	}
	s := scanner.New(logger, clients[0], clients[1], opts, deps)

	for {
		scanOnce(ctx, logger, s, cfg.Scan.Timeout)
		if once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(every):
		}
	}
}

// scanOnce runs one bounded scan. Aborted scans are logged; the process keeps going.
func scanOnce(ctx context.Context, logger *slog.Logger, s *scanner.Scanner, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := s.Run(ctx)
	if err != nil {
		logger.Error("Scan failed", "run_id", res.Run.ID, "error", err)
		return
	}
	if res.Run.OutputPath != "" {
		logger.Info("Results saved", "path", res.Run.OutputPath)
	}
}

func newDispatcher(logger *slog.Logger, cfg config.NotifyConfig) *notify.Dispatcher {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		logger.Warn("No notification channel configured, alerts go to the log")
		senders = append(senders, notify.NewLogSender(logger))
	}
	gate := ratelimit.NewGate("notify", cfg.Interval, 1, ratelimit.RealClock{})
	return notify.NewDispatcher(senders, gate, cfg.MinSpreadThreshold, logger)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
