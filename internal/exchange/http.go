package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"arbscan/internal/model"
	"arbscan/internal/ratelimit"

	"github.com/shopspring/decimal"
)

// restClient performs JSON GET requests against one exchange's REST API. When gate is set,
// every outbound request waits for it, so one client call that needs several requests is
// charged for each of them.
type restClient struct {
	name    string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	gate    *ratelimit.Gate
}

func newRESTClient(name, baseURL string, timeout time.Duration, logger *slog.Logger) *restClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &restClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// statusError carries a non-2xx response so callers can map exchange error codes.
type statusError struct {
	Status int
	Body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, string(e.Body))
}

func (c *restClient) get(ctx context.Context, path, rawQuery string, header http.Header, out any) error {
	if c.gate != nil {
		if err := c.gate.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: GET %s: %v", model.ErrDataUnavailable, c.name, path, err)
		}
	}

	endpoint := c.baseURL + path
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: create request %s: %w", c.name, path, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: GET %s: %v", model.ErrDataUnavailable, c.name, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: read %s: %v", model.ErrDataUnavailable, c.name, path, err)
	}
	c.logger.Debug("REST request completed", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: GET %s: rate limited", model.ErrDataUnavailable, c.name, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > 1024 {
			body = body[:1024]
		}
		return &statusError{Status: resp.StatusCode, Body: body}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: decode %s: %v", model.ErrDataUnavailable, c.name, path, err)
	}
	return nil
}

// bookSide summarizes the top levels of one side of an order book.
type bookSide struct {
	Best  float64
	Depth float64
}

// summarizeLevels parses [price, quantity] string pairs and sums the quote value of the first
// n levels.
func summarizeLevels(levels [][]string, n int) (bookSide, error) {
	if len(levels) == 0 {
		return bookSide{}, nil
	}
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}

	depth := decimal.Zero
	var best decimal.Decimal
	for i, level := range levels[:n] {
		if len(level) < 2 {
			return bookSide{}, fmt.Errorf("level %d: expected price and quantity, got %d fields", i, len(level))
		}
		price, err := decimal.NewFromString(level[0])
		if err != nil {
			return bookSide{}, fmt.Errorf("level %d: price %q: %w", i, level[0], err)
		}
		qty, err := decimal.NewFromString(level[1])
		if err != nil {
			return bookSide{}, fmt.Errorf("level %d: quantity %q: %w", i, level[1], err)
		}
		if i == 0 {
			best = price
		}
		depth = depth.Add(price.Mul(qty))
	}

	return bookSide{Best: best.InexactFloat64(), Depth: depth.InexactFloat64()}, nil
}

// parseAmount parses a decimal string, treating an empty string as zero.
func parseAmount(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// exchangeSymbol converts BASE/QUOTE into the concatenated form both REST APIs expect.
func exchangeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

func newSnapshot(exchange, symbol string, asks, bids bookSide, volume24h float64, fetchedAt time.Time) model.OrderBookSnapshot {
	return model.OrderBookSnapshot{
		Exchange:  exchange,
		Symbol:    symbol,
		Ask:       asks.Best,
		Bid:       bids.Best,
		AskDepth:  asks.Depth,
		BidDepth:  bids.Depth,
		Depth:     asks.Depth + bids.Depth,
		Volume24h: volume24h,
		FetchedAt: fetchedAt,
	}
}
