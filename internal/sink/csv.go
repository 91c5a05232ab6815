package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"arbscan/internal/model"
)

// FileName returns the timestamped result file name for a scan started at t.
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, t.UTC().Format("20060102_150405"))
}

// Header returns the CSV columns for a scan between exchanges a and b.
func Header(a, b string) []string {
	header := []string{"symbol", "direction", "buy_exchange", "sell_exchange", "best_spread",
		a + "_to_" + b + "_spread", b + "_to_" + a + "_spread"}
	for _, ex := range []string{a, b} {
		header = append(header, ex+"_ask", ex+"_bid", ex+"_depth", ex+"_volume_24h", ex+"_liquidity_score")
	}
	return append(header, "executable_volume", "min_liquidity_score", "supported_networks", "score", "detected_at")
}

func record(o model.Opportunity) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	rec := []string{o.Symbol, o.Direction, o.BuyExchange, o.SellExchange, f(o.BestSpread), f(o.SpreadAtoB), f(o.SpreadBtoA)}
	for _, q := range []model.Quote{o.A, o.B} {
		rec = append(rec, f(q.Ask), f(q.Bid), f(q.Depth), f(q.Volume24h), f(q.LiquidityScore))
	}
	return append(rec,
		f(o.ExecutableVolume),
		f(o.MinLiquidityScore),
		strings.Join(o.SupportedNetworks, "|"),
		f(o.Score),
		o.DetectedAt.UTC().Format(time.RFC3339),
	)
}

// EncodeCSV writes the header and one row per opportunity.
func EncodeCSV(w io.Writer, run model.ScanRun, rows []model.Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(run.ExchangeA, run.ExchangeB)); err != nil {
		return err
	}
	for _, o := range rows {
		if err := cw.Write(record(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVSink writes one CSV file per scan into a directory.
type CSVSink struct {
	dir    string
	prefix string
}

// NewCSVSink creates a CSVSink writing <dir>/<prefix>_<timestamp>.csv.
func NewCSVSink(dir, prefix string) *CSVSink {
	return &CSVSink{dir: dir, prefix: prefix}
}

func (s *CSVSink) Name() string {
	return "csv"
}

// Write renders the table in memory and renames it into place, so a failed write never leaves
// a truncated file behind.
func (s *CSVSink) Write(_ context.Context, run model.ScanRun, rows []model.Opportunity) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("sink: create %s: %w", s.dir, err)
	}

	var buf bytes.Buffer
	if err := EncodeCSV(&buf, run, rows); err != nil {
		return "", fmt.Errorf("sink: encode csv: %w", err)
	}

	path := filepath.Join(s.dir, FileName(s.prefix, run.StartedAt))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("sink: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("sink: rename %s: %w", path, err)
	}
	return path, nil
}
