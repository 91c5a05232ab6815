package exchange

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"arbscan/internal/config"
	"arbscan/internal/model"
	"arbscan/internal/ratelimit"
)

// NewClient creates a new exchange client based on the given name and configuration.
// Every HTTP request the returned client sends waits on the exchange's gate.
func NewClient(name string, logger *slog.Logger, cfg *config.ExchangeConfig, networks *NetworkNormalizer, clock ratelimit.Clock) (MarketDataClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: exchange %s is not configured", model.ErrFatalSetup, name)
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: exchange %s: invalid base url %q", model.ErrFatalSetup, name, cfg.BaseURL)
	}
	if networks == nil {
		networks = NewNetworkNormalizer(nil)
	}

	name = strings.ToLower(name)
	logger = logger.With("component", "exchange", "exchange", name)

	gate := ratelimit.NewGate(name, cfg.MinInterval, cfg.Burst, clock)

	switch name {
	case "bitget":
		client := NewBitgetClient(logger, cfg.BaseURL, cfg.Timeout, cfg.BookLevels, networks)
		client.rest.gate = gate
		return client, nil
	case "mexc":
		if cfg.APIKey == "" || cfg.SecretKey == "" {
			logger.Warn("MEXC credentials not set, network support will be empty")
		}
		client := NewMEXCClient(logger, cfg.BaseURL, cfg.APIKey, cfg.SecretKey, cfg.Timeout, cfg.BookLevels, networks)
		client.rest.gate = gate
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown exchange: %s", model.ErrFatalSetup, name)
	}
}
