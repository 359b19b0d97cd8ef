package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry      *prometheus.Registry
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	sources       prometheus.Histogram
	wsConnections prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courserag_queries_total",
			Help: "Queries answered, by transport and outcome.",
		}, []string{"transport", "status"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courserag_query_duration_seconds",
			Help:    "End-to-end query latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		sources: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courserag_query_sources",
			Help:    "Sources cited per answer.",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courserag_websocket_connections",
			Help: "Open WebSocket connections.",
		}),
	}
	m.registry.MustRegister(m.queries, m.queryDuration, m.sources, m.wsConnections)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
