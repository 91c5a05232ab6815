// Package metrics collects per-scan counters and pushes them to a Prometheus Pushgateway.
// The scanner is a batch job, so nothing is served; the registry is pushed once at scan end.
package metrics

import (
	"context"
	"fmt"
	"time"

	"arbscan/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder owns a private registry so repeated scans in one process never collide with the
// global default registry.
type Recorder struct {
	registry *prometheus.Registry
	url      string
	job      string

	symbols       prometheus.Gauge
	fetchFailures *prometheus.CounterVec
	evaluated     prometheus.Counter
	opportunities prometheus.Counter
	ranked        prometheus.Gauge
	notifications *prometheus.CounterVec
	duration      prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// NewRecorder creates a Recorder. An empty url disables Push.
func NewRecorder(url, job string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		url:      url,
		job:      job,
		symbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbscan_symbols_scanned",
			Help: "Symbols listed on both exchanges in the last scan.",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscan_fetch_failures_total",
			Help: "Market data requests that returned no usable data.",
		}, []string{"exchange"}),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_symbols_evaluated_total",
			Help: "Symbols whose snapshot pair reached the calculator.",
		}),
		opportunities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbscan_opportunities_total",
			Help: "Symbols with a positive spread in either direction.",
		}),
		ranked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbscan_opportunities_ranked",
			Help: "Opportunities that passed the filters in the last scan.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscan_notifications_total",
			Help: "Notifications by delivery outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbscan_scan_duration_seconds",
			Help: "Wall time of the last scan.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbscan_last_success_timestamp_seconds",
			Help: "Unix time of the last scan that was not aborted.",
		}),
	}
	r.registry.MustRegister(r.symbols, r.fetchFailures, r.evaluated, r.opportunities,
		r.ranked, r.notifications, r.duration, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) FetchFailed(exchange string) {
	r.fetchFailures.WithLabelValues(exchange).Inc()
}

func (r *Recorder) Evaluated(found bool) {
	r.evaluated.Inc()
	if found {
		r.opportunities.Inc()
	}
}

func (r *Recorder) Notified(sent, failed int) {
	r.notifications.WithLabelValues("sent").Add(float64(sent))
	r.notifications.WithLabelValues("failed").Add(float64(failed))
}

// ObserveRun records the summary gauges of a finished scan.
func (r *Recorder) ObserveRun(run model.ScanRun) {
	r.symbols.Set(float64(run.Symbols))
	r.ranked.Set(float64(run.Ranked))
	r.duration.Set(run.FinishedAt.Sub(run.StartedAt).Seconds())
	if run.Status != model.ScanAborted {
		r.lastSuccess.Set(float64(run.FinishedAt.Unix()))
	}
}

// Push sends the registry to the Pushgateway, replacing the previous push for this job.
func (r *Recorder) Push(ctx context.Context) error {
	if r.url == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := push.New(r.url, r.job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push: %w", err)
	}
	return nil
}
