package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"secevents/internal/domain"
)

const namespace = "secevents"

// Metrics records the outcome of extraction runs.
type Metrics struct {
	runs        *prometheus.CounterVec
	events      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	watermark   *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Extraction runs by kind and result.",
		}, []string{"kind", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events seen by kind and outcome (emitted, skipped, invalid).",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of extraction runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"kind"}),
		watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_watermark_seconds",
			Help:      "Last committed watermark per checkpoint, in Unix seconds.",
		}, []string{"checkpoint"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.runs, m.events, m.duration, m.watermark, m.lastSuccess)
	return m
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRun(stats *domain.RunStats, err error) {
	kind := string(stats.Kind)

	m.runs.WithLabelValues(kind, Result(err)).Inc()
	m.events.WithLabelValues(kind, "emitted").Add(float64(stats.Emitted))
	m.events.WithLabelValues(kind, "skipped").Add(float64(stats.Skipped))
	m.events.WithLabelValues(kind, "invalid").Add(float64(stats.Invalid))
	m.duration.WithLabelValues(kind).Observe(stats.Duration.Seconds())

	if stats.Checkpoint != "" && stats.Watermark != nil {
		m.watermark.WithLabelValues(stats.Checkpoint).Set(stats.Watermark.Decimal().InexactFloat64())
	}
	if err == nil {
		m.lastSuccess.WithLabelValues(kind).SetToCurrentTime()
	}
}

// Result names the failure category of err for the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	case errors.Is(err, domain.ErrSourceFetch):
		return "source"
	case errors.Is(err, domain.ErrDelivery):
		return "delivery"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	case errors.Is(err, domain.ErrInterrupted):
		return "interrupted"
	default:
		return "error"
	}
}
