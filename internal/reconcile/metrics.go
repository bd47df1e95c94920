package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbiter_reconcile_pending_opened_total",
		Help: "Pending interruptions opened by voice-activity triggers",
	})

	metricSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbiter_reconcile_pending_superseded_total",
		Help: "Pending interruptions discarded by a newer trigger",
	})

	metricResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbiter_reconcile_resolved_total",
		Help: "Pending interruption resolutions by kind",
	}, []string{"kind"})

	metricResolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbiter_reconcile_resolve_latency_ms",
		Help:    "Latency from voice-activity trigger to transcript resolution",
		Buckets: prometheus.ExponentialBuckets(10, 1.6, 10),
	})
)
