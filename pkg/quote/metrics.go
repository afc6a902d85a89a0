package quote

import (
	"github.com/prometheus/client_golang/prometheus"
)

// --- Metrics ---

// Metrics holds the Prometheus metrics for the quote engine.
type Metrics struct {
	quoteDuration *prometheus.HistogramVec
	quotesTotal   *prometheus.CounterVec
	rpcRetries    prometheus.Counter
	cacheHits     prometheus.Counter
}

// NewMetrics creates and registers the quote engine metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quote_duration_seconds",
			Help:    "Time taken to produce a quote, labeled by quote source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		quotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_requests_total",
			Help: "Total number of quotes produced, labeled by source and result.",
		}, []string{"source", "result"}),
		rpcRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_rpc_retries_total",
			Help: "Total number of retried swap simulation calls.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_cache_hits_total",
			Help: "Total number of quotes served from the quote cache.",
		}),
	}
	reg.MustRegister(m.quoteDuration, m.quotesTotal, m.rpcRetries, m.cacheHits)
	return m
}
