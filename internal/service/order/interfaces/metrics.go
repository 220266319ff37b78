// internal/service/order/interfaces/metrics.go
package interfaces

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_pipeline_stage_processed_total",
		Help: "Events successfully processed, per pipeline stage.",
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_pipeline_stage_failures_total",
		Help: "Events that exhausted local retries and entered the failure path, per stage.",
	}, []string{"stage"})

	deadLettersReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_pipeline_dead_letters_total",
		Help: "Messages observed on the dead-letter topic.",
	})
)
