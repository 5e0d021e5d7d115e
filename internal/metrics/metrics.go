// Package metrics exposes the gateway's Prometheus collectors: server
// health, resource cache refreshes, LLM/executor calls and recovery
// attempts by category (spec.md §4.2-§4.7 observability surfaces).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the gateway's own collectors, separate from the default
// global registry so tests can construct throwaway instances.
var Registry = prometheus.NewRegistry()

var (
	ServerReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sqlgateway",
			Subsystem: "registry",
			Name:      "server_ready",
			Help:      "Current readiness of a subordinate server (1 ready, 0 otherwise).",
		},
		[]string{"server_id"},
	)

	ServerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqlgateway",
			Subsystem: "registry",
			Name:      "server_requests_total",
			Help:      "Total calls made to a subordinate server, grouped by outcome.",
		},
		[]string{"server_id", "outcome"},
	)

	CacheRefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqlgateway",
			Subsystem: "resourcecache",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a per-server resource cache refresh.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"server_id"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqlgateway",
			Subsystem: "llm",
			Name:      "generate_calls_total",
			Help:      "Total LLM Generate calls, grouped by outcome and whether it was a recovery prompt.",
		},
		[]string{"outcome", "stage"},
	)

	ExecutorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqlgateway",
			Subsystem: "executor",
			Name:      "execute_query_calls_total",
			Help:      "Total execute_query calls, grouped by outcome.",
		},
		[]string{"server_id", "outcome"},
	)

	RecoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqlgateway",
			Subsystem: "recovery",
			Name:      "attempts_total",
			Help:      "Total recovery attempts, grouped by error category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqlgateway",
			Subsystem: "orchestrator",
			Name:      "process_query_duration_seconds",
			Help:      "End-to-end duration of ProcessQuery.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		ServerReady,
		ServerRequests,
		CacheRefreshDuration,
		LLMCalls,
		ExecutorCalls,
		RecoveryAttempts,
		QueryDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
