package metrics

import "github.com/prometheus/client_golang/prometheus"

// Generation and pipeline Prometheus metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpilot",
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deskpilot",
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"provider", "model"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpilot",
			Name:      "generation_tokens_total",
			Help:      "Total generation tokens consumed",
		},
		[]string{"provider", "model", "type"}, // type: prompt / completion
	)

	GenerationFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpilot",
			Name:      "generation_fallbacks_total",
			Help:      "Generation calls that degraded to the deterministic fallback",
		},
		[]string{"reason"}, // timeout / provider_error / pool_saturated
	)

	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpilot",
			Name:      "answers_total",
			Help:      "Answer pipeline outcomes",
		},
		[]string{"outcome"}, // answered / out_of_scope / no_content / fallback / invalid_input
	)

	RepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpilot",
			Name:      "structured_repairs_total",
			Help:      "Structured output repair outcomes",
		},
		[]string{"result"}, // parsed / repaired / fallback
	)

	ArtifactCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpilot",
			Name:      "artifact_cache_total",
			Help:      "Artifact cache hits and misses",
		},
		[]string{"kind", "result"}, // result: hit / miss
	)
)

var genMetricsRegistered bool

// RegisterGenerationMetrics registers Prometheus generation and pipeline metrics.
// Must be called once from main.
func RegisterGenerationMetrics() {
	if genMetricsRegistered {
		return
	}
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	prometheus.MustRegister(GenerationTokensTotal)
	prometheus.MustRegister(GenerationFallbacksTotal)
	prometheus.MustRegister(AnswersTotal)
	prometheus.MustRegister(RepairsTotal)
	prometheus.MustRegister(ArtifactCacheTotal)
	genMetricsRegistered = true
}
