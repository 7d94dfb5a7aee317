package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus metrics for query refinement
// =============================================================================

var (
	// resolutionsTotal counts resolved literals by escalation stage.
	// Labels: method (exact, cached, fulltext, similarity-thresholded, similarity-forced)
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refine",
		Subsystem: "resolver",
		Name:      "resolutions_total",
		Help:      "Total resolved literal values by escalation method",
	}, []string{"method"})

	// disambiguationsTotal counts user prompts by kind and outcome.
	// Labels: kind (optional, forced), outcome (selected, none, timeout)
	disambiguationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refine",
		Subsystem: "resolver",
		Name:      "disambiguations_total",
		Help:      "Total disambiguation prompts by kind and outcome",
	}, []string{"kind", "outcome"})

	// iterationsPerRequest measures generate→retrieve traversals per request.
	iterationsPerRequest = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "refine",
		Subsystem: "orchestrator",
		Name:      "iterations",
		Help:      "Generate/retrieve iterations per request",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 10, 12, 13},
	})

	// terminationsTotal counts finished requests by terminal kind.
	// Labels: kind (answered, no_retrieval, empty, oversized, execution_error, resolution_failed, internal)
	terminationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refine",
		Subsystem: "orchestrator",
		Name:      "terminations_total",
		Help:      "Finished requests by terminal kind",
	}, []string{"kind"})

	// retrievalsTotal counts retrieval outcomes.
	// Labels: outcome (usable, empty, oversized, error)
	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refine",
		Subsystem: "orchestrator",
		Name:      "retrievals_total",
		Help:      "Retrieval outcomes by classification",
	}, []string{"outcome"})
)

func RecordResolution(method string) {
	resolutionsTotal.WithLabelValues(method).Inc()
}

func RecordDisambiguation(allowNone bool, outcome string) {
	kind := "forced"
	if allowNone {
		kind = "optional"
	}
	disambiguationsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordIterations(n int) {
	iterationsPerRequest.Observe(float64(n))
}

func RecordTermination(kind string) {
	terminationsTotal.WithLabelValues(kind).Inc()
}

func RecordRetrieval(outcome string) {
	retrievalsTotal.WithLabelValues(outcome).Inc()
}
