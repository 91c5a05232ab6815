package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"arbscan/internal/model"
	"arbscan/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	texts  []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.titles)
}

func opportunity(symbol string, spread float64) model.Opportunity {
	return model.Opportunity{
		Symbol:            symbol,
		Direction:         "bitget→mexc",
		BestSpread:        spread,
		ExecutableVolume:  3000,
		MinLiquidityScore: 8.5,
		SupportedNetworks: []string{"ERC20", "TRC20"},
		A:                 model.Quote{Exchange: "bitget", Ask: 1.00, Bid: 0.99},
		B:                 model.Quote{Exchange: "mexc", Ask: 1.03, Bid: 1.02},
	}
}

func TestFormat(t *testing.T) {
	text := Format(opportunity("ABC/USDT", 2.0))

	assert.Contains(t, text, "Symbol: ABC/USDT")
	assert.Contains(t, text, "Direction: bitget→mexc")
	assert.Contains(t, text, "Spread: 2.000%")
	assert.Contains(t, text, "Executable volume: 3000.00")
	assert.Contains(t, text, "Networks: ERC20, TRC20")
	assert.Contains(t, text, "Min liquidity score: 8.5/10")
	assert.Contains(t, text, "bitget: ask 1 / bid 0.99")
	assert.Contains(t, text, "mexc: ask 1.03 / bid 1.02")
	assert.Equal(t, "Arbitrage: ABC/USDT 2.000%", Title(opportunity("ABC/USDT", 2.0)))
}

func TestFormat_NoNetworks(t *testing.T) {
	o := opportunity("ABC/USDT", 1)
	o.SupportedNetworks = nil
	assert.Contains(t, Format(o), "Networks: none")
}

func TestDispatcher_Enqueue(t *testing.T) {
	d := NewDispatcher(nil, ratelimit.NewGate("notify", 0, 1, nil), DefaultMinSpread, discardLogger())

	assert.True(t, d.Enqueue(opportunity("HIGH/USDT", 0.8)))
	assert.True(t, d.Enqueue(opportunity("EDGE/USDT", 0.5)))
	assert.False(t, d.Enqueue(opportunity("LOW/USDT", 0.3)))
	assert.Equal(t, 2, d.Len())
}

func TestDispatcher_DrainIsSpacedByInterval(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	sender := &recordingSender{}
	d := NewDispatcher([]Sender{sender}, ratelimit.NewGate("notify", time.Second, 1, clock), DefaultMinSpread, discardLogger())

	for _, s := range []string{"A/USDT", "B/USDT", "C/USDT"} {
		require.True(t, d.Enqueue(opportunity(s, 1)))
	}

	done := make(chan Stats, 1)
	go func() {
		stats, err := d.Drain(context.Background())
		assert.NoError(t, err)
		done <- stats
	}()

	// The first message goes out at once; each later one waits a full interval.
	for i := 1; i <= 2; i++ {
		require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, i, sender.count())
		clock.Advance(time.Second)
	}

	stats := <-done
	assert.Equal(t, Stats{Sent: 3}, stats)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
	assert.Equal(t, []string{"Arbitrage: A/USDT 1.000%", "Arbitrage: B/USDT 1.000%", "Arbitrage: C/USDT 1.000%"}, sender.titles)
	assert.Zero(t, d.Len())
}

func TestDispatcher_DrainCountsFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}
	d := NewDispatcher([]Sender{sender}, ratelimit.NewGate("notify", 0, 1, nil), DefaultMinSpread, discardLogger())
	d.Enqueue(opportunity("A/USDT", 1))
	d.Enqueue(opportunity("B/USDT", 1))

	stats, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 2}, stats)
	assert.Zero(t, d.Len())
}

func TestDispatcher_DrainStopsOnCancel(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	sender := &recordingSender{}
	d := NewDispatcher([]Sender{sender}, ratelimit.NewGate("notify", time.Second, 1, clock), DefaultMinSpread, discardLogger())
	d.Enqueue(opportunity("A/USDT", 1))
	d.Enqueue(opportunity("B/USDT", 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var stats Stats
	go func() {
		var err error
		stats, err = d.Drain(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Stats{Sent: 1}, stats)
	assert.Equal(t, 1, d.Len())
}

func TestDispatcher_SendTest(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher([]Sender{sender}, ratelimit.NewGate("notify", 0, 1, nil), DefaultMinSpread, discardLogger())

	require.NoError(t, d.SendTest(context.Background()))
	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "Symbol: TEST/USDT")

	failing := NewDispatcher([]Sender{&recordingSender{err: errors.New("unauthorized")}}, ratelimit.NewGate("notify", 0, 1, nil), DefaultMinSpread, discardLogger())
	assert.ErrorIs(t, failing.SendTest(context.Background()), model.ErrDeliveryFailed)
}

func TestTelegramSender_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL

	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestDiscordSender_Send(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Title", "body"))
		assert.Equal(t, "**Title**\nbody", got["content"])
	})

	t.Run("rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		err := NewDiscordSender(srv.URL).Send(context.Background(), "Title", "body")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})
}
