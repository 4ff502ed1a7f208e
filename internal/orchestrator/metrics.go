package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidcoach_generation_attempts_total",
			Help: "Generation attempts by model and outcome.",
		},
		[]string{"model", "status"},
	)
	attemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kidcoach_generation_attempt_duration_seconds",
			Help:    "Duration of individual generation attempts.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	runsExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kidcoach_generation_runs_exhausted_total",
			Help: "Orchestration runs that failed after exhausting every model.",
		},
	)
)
