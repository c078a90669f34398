package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opFund   = "fund"
	opDeploy = "deploy"
	opWrite  = "write"
	opRead   = "read"
)

// Metrics used in monitoring service.
var (
	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of store operations",
			Name:      "store_operations_total",
			Namespace: "chainjson",
		},
		[]string{"operation", "result"},
	)

	storeTimes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "Store operation time",
			Name:      "store_operation_duration_seconds",
			Namespace: "chainjson",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	payloadSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Size of written payloads",
			Name:      "payload_size_bytes",
			Namespace: "chainjson",
			Buckets:   prometheus.LinearBuckets(0, 128, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		storeOps,
		storeTimes,
		payloadSize,
	)
}

func observe(op string, start time.Time, err *error) {
	if *err != nil {
		observeFailure(op)
		return
	}
	storeOps.WithLabelValues(op, "ok").Inc()
	storeTimes.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func observeFailure(op string) {
	storeOps.WithLabelValues(op, "error").Inc()
}
