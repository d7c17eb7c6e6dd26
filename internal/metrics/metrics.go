// Package metrics exposes the node's Prometheus counters and histograms,
// giving the fetch/aggregate/cache/HTTP components a place to report into.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the node reports.
type Registry struct {
	FetchDuration           *prometheus.HistogramVec
	FetchErrors             *prometheus.CounterVec
	AggregateDuration       *prometheus.HistogramVec
	AggregateErrors         *prometheus.CounterVec
	BarsUpserted            *prometheus.CounterVec
	CacheHits               *prometheus.CounterVec
	CacheMisses             *prometheus.CounterVec
	HTTPRequests            *prometheus.CounterVec
	HTTPDuration            *prometheus.HistogramVec
	LoopConsecutiveFailures *prometheus.GaugeVec
}

// New builds and registers every metric against the default registerer.
func New() *Registry {
	r := &Registry{
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "klinenode_fetch_duration_seconds",
			Help:    "Duration of one fetch pass (initial or incremental) per symbol.",
			Buckets: prometheus.DefBuckets,
		}, []string{"symbol", "mode"}),

		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinenode_fetch_errors_total",
			Help: "Fetch failures by symbol and mode.",
		}, []string{"symbol", "mode"}),

		AggregateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "klinenode_aggregate_duration_seconds",
			Help:    "Duration of one aggregate_symbol pass.",
			Buckets: prometheus.DefBuckets,
		}, []string{"symbol"}),

		AggregateErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinenode_aggregate_errors_total",
			Help: "Aggregation failures by symbol.",
		}, []string{"symbol"}),

		BarsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinenode_bars_upserted_total",
			Help: "Bars written to the store by timeframe.",
		}, []string{"timeframe"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinenode_cache_hits_total",
			Help: "Response cache hits.",
		}, []string{"cache"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinenode_cache_misses_total",
			Help: "Response cache misses.",
		}, []string{"cache"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinenode_http_requests_total",
			Help: "Served HTTP requests by route and status.",
		}, []string{"route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "klinenode_http_request_duration_seconds",
			Help:    "Served HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		LoopConsecutiveFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "klinenode_loop_consecutive_failures",
			Help: "Consecutive failed ticks for a supervised loop, reset to 0 on success.",
		}, []string{"loop"}),
	}

	prometheus.MustRegister(
		r.FetchDuration, r.FetchErrors, r.AggregateDuration, r.AggregateErrors,
		r.BarsUpserted, r.CacheHits, r.CacheMisses, r.HTTPRequests, r.HTTPDuration,
		r.LoopConsecutiveFailures,
	)
	return r
}

// Handler returns the promhttp handler served at GET /v1/metrics.
func (r *Registry) Handler() http.Handler { return promhttp.Handler() }

// ObserveFetch records one fetch pass's duration and, if err != nil,
// increments the error counter.
func (r *Registry) ObserveFetch(symbol, mode string, d time.Duration, err error) {
	r.FetchDuration.WithLabelValues(symbol, mode).Observe(d.Seconds())
	if err != nil {
		r.FetchErrors.WithLabelValues(symbol, mode).Inc()
	}
}

// ObserveAggregate records one aggregate_symbol pass's duration and error.
func (r *Registry) ObserveAggregate(symbol string, d time.Duration, err error) {
	r.AggregateDuration.WithLabelValues(symbol).Observe(d.Seconds())
	if err != nil {
		r.AggregateErrors.WithLabelValues(symbol).Inc()
	}
}
