package aggregation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdms_rating_recomputes_total",
			Help: "Movie rating recomputations by outcome.",
		},
		[]string{"result"},
	)

	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdms_repair_sweep_runs_total",
			Help: "Repair sweep runs by outcome.",
		},
		[]string{"result"},
	)

	sweepRepairedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mdms_repair_sweep_repaired_movies_total",
		Help: "Movies whose stored rating stats were corrected by a committed sweep.",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mdms_repair_sweep_duration_seconds",
		Help:    "Duration of repair sweep runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)
