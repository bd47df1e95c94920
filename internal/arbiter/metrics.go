package arbiter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arbiter_decisions_total",
	Help: "Arbitration decisions by outcome",
}, []string{"decision"})
