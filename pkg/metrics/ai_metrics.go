// Package metrics provides Prometheus metrics for monitoring Acta components.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// AI gateway metrics
var (
	// aiRequestsTotal records the total number of AI provider round trips.
	// Labels:
	//   - provider: Provider name (e.g., "openai", "gemini", "elevenlabs")
	//   - operation: Gateway operation (e.g., "classify", "summarize", "transcribe", "speak")
	//   - status: Outcome (e.g., "success", "failed", "fallback")
	aiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI provider requests",
		},
		[]string{"provider", "operation", "status"},
	)

	// aiRequestDuration records the duration of AI provider round trips.
	// Labels:
	//   - provider: Provider name (e.g., "openai", "gemini")
	//   - operation: Gateway operation (e.g., "classify", "summarize")
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	aiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Duration of AI provider requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	// sessionOperationsTotal records meeting session operations.
	// Labels:
	//   - operation: Session operation (e.g., "start", "end", "record_message", "add_task", "update_task_status")
	//   - status: Outcome (e.g., "success", "failed")
	sessionOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_operations_total",
			Help: "Total number of meeting session operations",
		},
		[]string{"operation", "status"},
	)
)

func init() {
	prometheus.MustRegister(aiRequestsTotal)
	prometheus.MustRegister(aiRequestDuration)
	prometheus.MustRegister(sessionOperationsTotal)
}

// RecordAIRequest records one AI provider round trip.
func RecordAIRequest(provider, operation, status string) {
	aiRequestsTotal.WithLabelValues(provider, operation, status).Inc()
}

// RecordAIRequestDuration records the duration of an AI provider round trip.
func RecordAIRequestDuration(provider, operation string, durationSeconds float64) {
	aiRequestDuration.WithLabelValues(provider, operation).Observe(durationSeconds)
}

// RecordSessionOperation records the outcome of a session operation.
func RecordSessionOperation(operation, status string) {
	sessionOperationsTotal.WithLabelValues(operation, status).Inc()
}
