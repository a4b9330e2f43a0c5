package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdms_review_mutations_total",
			Help: "Review mutations by operation and outcome.",
		},
		[]string{"op", "result"},
	)

	mutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdms_review_mutation_duration_seconds",
			Help:    "Duration of review mutation transactions in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)

	publishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mdms_review_event_publish_failures_total",
		Help: "Review events that could not be published.",
	})
)
