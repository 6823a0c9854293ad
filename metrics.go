package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"selection/solver"
)

var (
	// solvesTotal counts solve requests by outcome: complete, partial, invalid, timeout
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selection_solves_total",
		Help: "Total cohort solves by outcome",
	}, []string{"outcome"})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "selection_solve_duration_seconds",
		Help:    "Time spent in the solver per cohort solve",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	})

	solveUnassigned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "selection_solve_unassigned_students",
		Help:    "Students left unassigned per cohort solve",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})
)

func observeSolve(res solver.Result, elapsed time.Duration, solveErr, verifyErr error) string {
	outcome := "complete"
	switch {
	case solveErr != nil:
		outcome = "timeout"
	case verifyErr != nil:
		outcome = "invalid"
	case len(res.Unassigned) > 0:
		outcome = "partial"
	}
	solvesTotal.WithLabelValues(outcome).Inc()
	solveDuration.Observe(elapsed.Seconds())
	solveUnassigned.Observe(float64(len(res.Unassigned)))
	return outcome
}
