package fusion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbiter_classifications_total",
		Help: "Total fused classifications by resulting class",
	}, []string{"class"})

	metricOverallScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbiter_fusion_overall_score",
		Help:    "Distribution of fused overall scores",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	metricEngineClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbiter_engine_classifications_total",
		Help: "Classifications by engine variant",
	}, []string{"engine"})

	metricEngineFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbiter_engine_fallbacks_total",
		Help: "Generative engine failures that fell back to the rule engine",
	})
)
