package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"arbscan/internal/model"
)

const bitgetSuccess = "00000"

// bitgetUnknownSymbol is returned by the v2 market endpoints for symbols that do not exist.
const bitgetUnknownSymbol = "40034"

// BitgetClient implements the MarketDataClient interface for the Bitget spot REST API.
type BitgetClient struct {
	rest       *restClient
	networks   *NetworkNormalizer
	bookLevels int
	now        func() time.Time
}

// NewBitgetClient creates a new BitgetClient.
func NewBitgetClient(logger *slog.Logger, baseURL string, timeout time.Duration, bookLevels int, networks *NetworkNormalizer) *BitgetClient {
	return &BitgetClient{
		rest:       newRESTClient("bitget", baseURL, timeout, logger),
		networks:   networks,
		bookLevels: bookLevels,
		now:        time.Now,
	}
}

func (b *BitgetClient) Name() string {
	return "bitget"
}

type bitgetEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (b *BitgetClient) call(ctx context.Context, path string, query url.Values, out any) error {
	var env bitgetEnvelope
	err := b.rest.get(ctx, path, query.Encode(), nil, &env)

	var se *statusError
	if errors.As(err, &se) {
		// Bitget reports request errors with a 4xx status and the usual envelope.
		if jerr := json.Unmarshal(se.Body, &env); jerr != nil || env.Code == "" {
			return fmt.Errorf("%w: bitget: GET %s: %v", model.ErrDataUnavailable, path, se)
		}
	} else if err != nil {
		return err
	}

	if env.Code != bitgetSuccess {
		if env.Code == bitgetUnknownSymbol {
			return fmt.Errorf("%w: bitget: %s", model.ErrUnknownSymbol, env.Msg)
		}
		return fmt.Errorf("%w: bitget: GET %s: code %s: %s", model.ErrDataUnavailable, path, env.Code, env.Msg)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: bitget: decode %s data: %v", model.ErrDataUnavailable, path, err)
	}
	return nil
}

// ListSymbols returns the online spot symbols in BASE/QUOTE form.
func (b *BitgetClient) ListSymbols(ctx context.Context) ([]string, error) {
	var data []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	}
	if err := b.call(ctx, "/api/v2/spot/public/symbols", nil, &data); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(data))
	for _, s := range data {
		// Halted and gray-listed pairs still appear in the listing.
		if !strings.EqualFold(s.Status, "online") || s.BaseCoin == "" || s.QuoteCoin == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(s.BaseCoin)+"/"+strings.ToUpper(s.QuoteCoin))
	}
	return symbols, nil
}

// FetchOrderBook returns the top levels of the book and the 24h quote volume for symbol.
func (b *BitgetClient) FetchOrderBook(ctx context.Context, symbol string) (model.OrderBookSnapshot, error) {
	query := url.Values{}
	query.Set("symbol", exchangeSymbol(symbol))
	query.Set("type", "step0")
	query.Set("limit", strconv.Itoa(max(b.bookLevels, 1)))

	var book struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	}
	if err := b.call(ctx, "/api/v2/spot/market/orderbook", query, &book); err != nil {
		return model.OrderBookSnapshot{}, err
	}

	asks, err := summarizeLevels(book.Asks, b.bookLevels)
	if err != nil {
		return model.OrderBookSnapshot{}, fmt.Errorf("%w: bitget: %s asks: %v", model.ErrDataUnavailable, symbol, err)
	}
	bids, err := summarizeLevels(book.Bids, b.bookLevels)
	if err != nil {
		return model.OrderBookSnapshot{}, fmt.Errorf("%w: bitget: %s bids: %v", model.ErrDataUnavailable, symbol, err)
	}

	tickerQuery := url.Values{}
	tickerQuery.Set("symbol", exchangeSymbol(symbol))
	var tickers []struct {
		Symbol      string `json:"symbol"`
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := b.call(ctx, "/api/v2/spot/market/tickers", tickerQuery, &tickers); err != nil {
		return model.OrderBookSnapshot{}, err
	}
	if len(tickers) == 0 {
		return model.OrderBookSnapshot{}, fmt.Errorf("%w: bitget: no ticker for %s", model.ErrUnknownSymbol, symbol)
	}
	volume, err := parseAmount(tickers[0].QuoteVolume)
	if err != nil {
		return model.OrderBookSnapshot{}, fmt.Errorf("%w: bitget: %s quote volume: %v", model.ErrDataUnavailable, symbol, err)
	}

	return newSnapshot(b.Name(), symbol, asks, bids, volume, b.now()), nil
}

// FetchNetworks returns the chains on which asset can be deposited or withdrawn.
func (b *BitgetClient) FetchNetworks(ctx context.Context, asset string) (model.NetworkSet, error) {
	query := url.Values{}
	query.Set("coin", strings.ToUpper(asset))

	var coins []struct {
		Coin   string `json:"coin"`
		Chains []struct {
			Chain           string `json:"chain"`
			Withdrawable    string `json:"withdrawable"`
			Rechargeable    string `json:"rechargeable"`
			ContractAddress string `json:"contractAddress"`
		} `json:"chains"`
	}
	if err := b.call(ctx, "/api/v2/spot/public/coins", query, &coins); err != nil {
		return nil, err
	}

	set := model.NetworkSet{}
	for _, c := range coins {
		if !strings.EqualFold(c.Coin, asset) {
			continue
		}
		for _, chain := range c.Chains {
			if chain.Chain == "" {
				continue
			}
			n := b.networks.Network(chain.Chain, chain.ContractAddress, chain.Rechargeable == "true", chain.Withdrawable == "true")
			set[n.ID] = n
		}
	}
	return set, nil
}
