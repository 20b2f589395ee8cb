package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromRecorder mirrors Metrics into Prometheus collectors on its own registry.
type PromRecorder struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	retries     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	breakerOpen *prometheus.GaugeVec
	cache       *prometheus.CounterVec
	streamConns prometheus.Gauge
	ticks       prometheus.Counter
}

// NewPromRecorder creates the collectors and registers them.
func NewPromRecorder() *PromRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PromRecorder{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_dash_gateway_requests_total",
				Help: "Gateway calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_dash_gateway_retries_total",
				Help: "Gateway retry attempts by endpoint",
			},
			[]string{"endpoint"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crypto_dash_gateway_duration_seconds",
				Help:    "Gateway call duration in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		breakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crypto_dash_breaker_open",
				Help: "1 while the endpoint's circuit breaker is open",
			},
			[]string{"endpoint"},
		),
		cache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_dash_range_cache_lookups_total",
				Help: "Price series cache lookups by result",
			},
			[]string{"result"},
		),
		streamConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crypto_dash_stream_connections",
			Help: "Open ticker stream connections",
		}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "crypto_dash_stream_ticks_total",
			Help: "Ticker updates applied to the table",
		}),
	}
}

func (r *PromRecorder) ObserveRequest(endpoint string, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.requests.WithLabelValues(endpoint, outcome).Inc()
	r.latency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

func (r *PromRecorder) ObserveRetry(endpoint string) {
	r.retries.WithLabelValues(endpoint).Inc()
}

func (r *PromRecorder) ObserveBreaker(endpoint string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	r.breakerOpen.WithLabelValues(endpoint).Set(v)
}

func (r *PromRecorder) ObserveCache(hit bool) {
	if hit {
		r.cache.WithLabelValues("hit").Inc()
	} else {
		r.cache.WithLabelValues("miss").Inc()
	}
}

func (r *PromRecorder) ObserveStream(connected bool) {
	if connected {
		r.streamConns.Inc()
	} else {
		r.streamConns.Dec()
	}
}

func (r *PromRecorder) ObserveTick() { r.ticks.Inc() }

// Handler serves the registry in the Prometheus text format.
func (r *PromRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *PromRecorder) Registry() *prometheus.Registry { return r.registry }
