package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"arbscan/internal/model"
)

// mexcInvalidSymbol is the API error code for symbols that are not listed.
const mexcInvalidSymbol = -1121

// mexcCapitalTTL bounds how long one capital config download is reused.
const mexcCapitalTTL = 10 * time.Minute

// MEXCClient implements the MarketDataClient interface for the MEXC spot v3 REST API.
// Network data comes from the signed capital config endpoint, which returns every coin at once.
type MEXCClient struct {
	rest       *restClient
	logger     *slog.Logger
	apiKey     string
	secretKey  string
	networks   *NetworkNormalizer
	bookLevels int
	now        func() time.Time

	mu        sync.Mutex
	capital   map[string]model.NetworkSet
	capitalAt time.Time
}

// NewMEXCClient creates a new MEXCClient. Without credentials the client serves market data
// only and reports no networks.
func NewMEXCClient(logger *slog.Logger, baseURL, apiKey, secretKey string, timeout time.Duration, bookLevels int, networks *NetworkNormalizer) *MEXCClient {
	return &MEXCClient{
		rest:       newRESTClient("mexc", baseURL, timeout, logger),
		logger:     logger,
		apiKey:     apiKey,
		secretKey:  secretKey,
		networks:   networks,
		bookLevels: bookLevels,
		now:        time.Now,
	}
}

func (m *MEXCClient) Name() string {
	return "mexc"
}

type mexcError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (m *MEXCClient) call(ctx context.Context, path string, query url.Values, header http.Header, out any) error {
	return m.callRaw(ctx, path, query.Encode(), header, out)
}

func (m *MEXCClient) callRaw(ctx context.Context, path, rawQuery string, header http.Header, out any) error {
	err := m.rest.get(ctx, path, rawQuery, header, out)

	var se *statusError
	if !errors.As(err, &se) {
		return err
	}
	var apiErr mexcError
	if jerr := json.Unmarshal(se.Body, &apiErr); jerr != nil || apiErr.Code == 0 {
		return fmt.Errorf("%w: mexc: GET %s: %v", model.ErrDataUnavailable, path, se)
	}
	if apiErr.Code == mexcInvalidSymbol {
		return fmt.Errorf("%w: mexc: %s", model.ErrUnknownSymbol, apiErr.Msg)
	}
	return fmt.Errorf("%w: mexc: GET %s: code %d: %s", model.ErrDataUnavailable, path, apiErr.Code, apiErr.Msg)
}

// ListSymbols returns the enabled spot symbols in BASE/QUOTE form.
func (m *MEXCClient) ListSymbols(ctx context.Context) ([]string, error) {
	var info struct {
		Symbols []struct {
			Symbol               string `json:"symbol"`
			Status               string `json:"status"`
			BaseAsset            string `json:"baseAsset"`
			QuoteAsset           string `json:"quoteAsset"`
			IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
		} `json:"symbols"`
	}
	if err := m.call(ctx, "/api/v3/exchangeInfo", nil, nil, &info); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		// MEXC reports "1" for online pairs; older responses used "ENABLED".
		if s.Status != "1" && !strings.EqualFold(s.Status, "ENABLED") {
			continue
		}
		if !s.IsSpotTradingAllowed || s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(s.BaseAsset)+"/"+strings.ToUpper(s.QuoteAsset))
	}
	return symbols, nil
}

// FetchOrderBook returns the top levels of the book and the 24h quote volume for symbol.
func (m *MEXCClient) FetchOrderBook(ctx context.Context, symbol string) (model.OrderBookSnapshot, error) {
	query := url.Values{}
	query.Set("symbol", exchangeSymbol(symbol))
	query.Set("limit", strconv.Itoa(max(m.bookLevels, 1)))

	var book struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	}
	if err := m.call(ctx, "/api/v3/depth", query, nil, &book); err != nil {
		return model.OrderBookSnapshot{}, err
	}

	asks, err := summarizeLevels(book.Asks, m.bookLevels)
	if err != nil {
		return model.OrderBookSnapshot{}, fmt.Errorf("%w: mexc: %s asks: %v", model.ErrDataUnavailable, symbol, err)
	}
	bids, err := summarizeLevels(book.Bids, m.bookLevels)
	if err != nil {
		return model.OrderBookSnapshot{}, fmt.Errorf("%w: mexc: %s bids: %v", model.ErrDataUnavailable, symbol, err)
	}

	tickerQuery := url.Values{}
	tickerQuery.Set("symbol", exchangeSymbol(symbol))
	var ticker struct {
		Symbol      string `json:"symbol"`
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := m.call(ctx, "/api/v3/ticker/24hr", tickerQuery, nil, &ticker); err != nil {
		return model.OrderBookSnapshot{}, err
	}
	volume, err := parseAmount(ticker.QuoteVolume)
	if err != nil {
		return model.OrderBookSnapshot{}, fmt.Errorf("%w: mexc: %s quote volume: %v", model.ErrDataUnavailable, symbol, err)
	}

	return newSnapshot(m.Name(), symbol, asks, bids, volume, m.now()), nil
}

// FetchNetworks returns the chains on which asset can be deposited or withdrawn.
func (m *MEXCClient) FetchNetworks(ctx context.Context, asset string) (model.NetworkSet, error) {
	if m.apiKey == "" || m.secretKey == "" {
		m.logger.Debug("MEXCClient: no credentials, skipping network lookup", "asset", asset)
		return model.NetworkSet{}, nil
	}

	capital, err := m.capitalConfig(ctx)
	if err != nil {
		return nil, err
	}
	if set, ok := capital[strings.ToUpper(asset)]; ok {
		return set, nil
	}
	return model.NetworkSet{}, nil
}

func (m *MEXCClient) capitalConfig(ctx context.Context) (map[string]model.NetworkSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capital != nil && m.now().Sub(m.capitalAt) < mexcCapitalTTL {
		return m.capital, nil
	}

	// The signature covers the exact parameter string and must come last.
	params := url.Values{}
	params.Set("recvWindow", "5000")
	params.Set("timestamp", strconv.FormatInt(m.now().UnixMilli(), 10))
	payload := params.Encode()
	rawQuery := payload + "&signature=" + m.sign(payload)

	header := http.Header{}
	header.Set("X-MEXC-APIKEY", m.apiKey)

	var coins []struct {
		Coin        string `json:"coin"`
		NetworkList []struct {
			Network        string `json:"network"`
			NetWork        string `json:"netWork"`
			DepositEnable  bool   `json:"depositEnable"`
			WithdrawEnable bool   `json:"withdrawEnable"`
			Contract       string `json:"contract"`
		} `json:"networkList"`
	}
	if err := m.callRaw(ctx, "/api/v3/capital/config/getall", rawQuery, header, &coins); err != nil {
		return nil, err
	}

	capital := make(map[string]model.NetworkSet, len(coins))
	for _, c := range coins {
		set := model.NetworkSet{}
		for _, n := range c.NetworkList {
			raw := n.NetWork
			if raw == "" {
				raw = n.Network
			}
			if raw == "" {
				continue
			}
			network := m.networks.Network(raw, n.Contract, n.DepositEnable, n.WithdrawEnable)
			set[network.ID] = network
		}
		capital[strings.ToUpper(c.Coin)] = set
	}

	m.capital = capital
	m.capitalAt = m.now()
	return capital, nil
}

// sign returns the hex HMAC-SHA256 of the encoded query, as required by signed endpoints.
func (m *MEXCClient) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(m.secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
