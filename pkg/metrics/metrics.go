// Package metrics holds the Prometheus collectors shared by the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "concierge"

var (
	// CacheLookups counts cache reads by cache name and result (hit, miss, expired, error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	InferenceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_calls_total",
			Help:      "Inference service calls by outcome",
		},
		[]string{"outcome"},
	)

	InferenceTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_tokens_total",
			Help:      "Tokens reported by the inference service",
		},
		[]string{"direction"},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Tool executions by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	RetrievalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_calls_total",
			Help:      "Retrieval backend calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_notifications_total",
			Help:      "Escalation notification deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	RepairStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_repair_total",
			Help:      "Model output repair attempts by winning strategy",
		},
		[]string{"strategy"},
	)

	ValidationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_validation_fallbacks_total",
			Help:      "Model outputs replaced by the minimal fallback after schema validation failed",
		},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Persistence writes that failed and were absorbed",
		},
		[]string{"operation"},
	)

	// TurnDuration tracks end-to-end turn latency by reply source.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration by reply source",
			Buckets:   []float64{.005, .05, .25, .5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"source"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
