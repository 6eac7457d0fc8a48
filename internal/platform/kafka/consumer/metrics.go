package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retry growth with no dead-letter means a stalled partition is only visible
// through these counters; alert on recordRetries rate.
var (
	recordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amt_deltaker_consumer_records_processed_total",
		Help: "Records successfully processed per topic.",
	}, []string{"topic"})

	recordRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amt_deltaker_consumer_record_retries_total",
		Help: "Per-record processing retries per topic.",
	}, []string{"topic"})
)
