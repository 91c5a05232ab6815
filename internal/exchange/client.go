package exchange

import (
	"context"

	"arbscan/internal/model"
)

// MarketDataClient defines the standard interface for all exchange clients.
type MarketDataClient interface {
	Name() string
	// ListSymbols returns the tradable spot symbols in BASE/QUOTE form.
	ListSymbols(ctx context.Context) ([]string, error)
	// FetchOrderBook returns a point-in-time snapshot of the symbol's book.
	FetchOrderBook(ctx context.Context, symbol string) (model.OrderBookSnapshot, error)
	// FetchNetworks returns the deposit/withdrawal networks of a base asset.
	FetchNetworks(ctx context.Context, asset string) (model.NetworkSet, error)
}
