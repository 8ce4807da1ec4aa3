package metrics

import "github.com/prometheus/client_golang/prometheus"

// Model service Prometheus metrics.
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libraryai",
			Name:      "model_requests_total",
			Help:      "Total number of model service requests",
		},
		[]string{"op", "model", "status"}, // op: embed / generate
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "libraryai",
			Name:      "model_request_duration_seconds",
			Help:      "Model service request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op", "model"},
	)

	ModelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libraryai",
			Name:      "model_errors_total",
			Help:      "Total model service errors",
		},
		[]string{"op", "model", "error_type"},
	)

	FilterFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "libraryai",
			Name:      "filter_fallbacks_total",
			Help:      "Semantic filter degradations to distance-ordered top-N",
		},
	)

	ReasonFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "libraryai",
			Name:      "reason_fallbacks_total",
			Help:      "Recommendations that received the fallback reason sentence",
		},
	)
)

var modelMetricsRegistered bool

// RegisterModelMetrics registers model service metrics. Must be called once from main.
func RegisterModelMetrics() {
	if modelMetricsRegistered {
		return
	}
	prometheus.MustRegister(ModelRequestsTotal)
	prometheus.MustRegister(ModelRequestDuration)
	prometheus.MustRegister(ModelErrorsTotal)
	prometheus.MustRegister(FilterFallbacksTotal)
	prometheus.MustRegister(ReasonFallbacksTotal)
	modelMetricsRegistered = true
}
