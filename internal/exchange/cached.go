package exchange

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"arbscan/internal/model"
)

// NetworkStore persists network support between scans.
type NetworkStore interface {
	Get(ctx context.Context, exchange, asset string) (model.NetworkSet, bool, error)
	Set(ctx context.Context, exchange, asset string, set model.NetworkSet) error
}

// Cached memoizes FetchNetworks, first in memory and then in an optional NetworkStore.
// Network support changes rarely, while every symbol of a scan needs it. The in-memory layer
// lives for one scan: call Reset before each scan. The store's TTL bounds staleness across scans.
type Cached struct {
	MarketDataClient
	store  NetworkStore
	logger *slog.Logger

	mu    sync.Mutex
	local map[string]model.NetworkSet
}

// NewCached wraps next. store may be nil.
func NewCached(next MarketDataClient, store NetworkStore, logger *slog.Logger) *Cached {
	return &Cached{
		MarketDataClient: next,
		store:            store,
		logger:           logger.With("component", "network_cache", "exchange", next.Name()),
		local:            make(map[string]model.NetworkSet),
	}
}

func (c *Cached) FetchNetworks(ctx context.Context, asset string) (model.NetworkSet, error) {
	asset = strings.ToUpper(asset)

	c.mu.Lock()
	set, ok := c.local[asset]
	c.mu.Unlock()
	if ok {
		return set, nil
	}

	if c.store != nil {
		set, ok, err := c.store.Get(ctx, c.Name(), asset)
		if err != nil {
			c.logger.Warn("Failed to read cached networks", "asset", asset, "error", err)
		} else if ok {
			c.remember(asset, set)
			return set, nil
		}
	}

	set, err := c.MarketDataClient.FetchNetworks(ctx, asset)
	if err != nil {
		return nil, err
	}
	c.remember(asset, set)

	if c.store != nil {
		if err := c.store.Set(ctx, c.Name(), asset, set); err != nil {
			c.logger.Warn("Failed to cache networks", "asset", asset, "error", err)
		}
	}
	return set, nil
}

// Reset drops the in-memory networks so the next scan sees fresh deposit and withdrawal state.
func (c *Cached) Reset() {
	c.mu.Lock()
	c.local = make(map[string]model.NetworkSet)
	c.mu.Unlock()
}

func (c *Cached) remember(asset string, set model.NetworkSet) {
	c.mu.Lock()
	c.local[asset] = set
	c.mu.Unlock()
}
