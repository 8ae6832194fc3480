// Package metrics declares the prometheus instruments shared across
// the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every instrument; one instance is wired through the
// whole service.
type Metrics struct {
	IncomingTurns   *prometheus.CounterVec
	Replies         *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	ToolRequests    *prometheus.CounterVec
	ToolLatency     *prometheus.HistogramVec
	ModelRequests   *prometheus.CounterVec
	ModelLatency    *prometheus.HistogramVec
	CatalogRefresh  *prometheus.CounterVec
	CatalogEntries  prometheus.Gauge
	PendingRefs     prometheus.Gauge
}

// New registers all instruments under the given namespace on the
// default registry.
func New(namespace string) *Metrics {
	return &Metrics{
		IncomingTurns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incoming_turns_total",
			Help:      "Inbound chat turns by resolved branch.",
		}, []string{"branch"}),
		Replies: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies produced by category.",
		}, []string{"category"}),
		Errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by component.",
		}, []string{"component"}),
		ToolRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_requests_total",
			Help:      "Backend tool calls by tool and status.",
		}, []string{"tool", "status"}),
		ToolLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_seconds",
			Help:      "Backend tool call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "status"}),
		ModelRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Model gateway calls by status.",
		}, []string{"status"}),
		ModelLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Model gateway call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		CatalogRefresh: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Catalog index rebuilds by outcome.",
		}, []string{"outcome"}),
		CatalogEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_entries",
			Help:      "Entries currently held in the catalog index.",
		}),
		PendingRefs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_references",
			Help:      "Conversations with a pending quantity question.",
		}),
	}
}
