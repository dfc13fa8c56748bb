// Package telemetry provides the logger handle every other package injects
// via InitializeLogger, plus the Prometheus metrics exported by mbserve's
// /metrics endpoint.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "gopkg.in/inconshreveable/log15.v2"
)

var logger log.Logger = log.New()

// InitializeLogger creates a module-scoped child logger from parentLogger.
// Every package that calls it gets a "module" field identifying itself in
// every log line, the same convention the server package uses.
func InitializeLogger(parentLogger log.Logger, module string) log.Logger {
	l := parentLogger.New("module", module)
	if module == "telemetry" {
		logger = l
	}
	return l
}

// Logger returns the telemetry package's own logger.
func Logger() log.Logger { return logger }

var (
	// NodesExpanded counts A* nodes popped from the open set and expanded,
	// across all solves this process has run.
	NodesExpanded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mbsolve",
		Subsystem: "astar",
		Name:      "nodes_expanded_total",
		Help:      "Total A* nodes expanded across all solves.",
	})

	// SimulatorInvocations counts calls into simulator.Simulate.
	SimulatorInvocations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mbsolve",
		Subsystem: "astar",
		Name:      "simulator_invocations_total",
		Help:      "Total simulator.Simulate invocations across all solves.",
	})

	// OpenSetSize is a gauge sampled periodically during a solve, reporting
	// the A* open set's current length.
	OpenSetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mbsolve",
		Subsystem: "astar",
		Name:      "open_set_size",
		Help:      "Current size of the A* open set.",
	})

	// SolveDuration records wall-clock time of completed solves.
	SolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mbsolve",
		Subsystem: "astar",
		Name:      "solve_duration_seconds",
		Help:      "Wall-clock duration of a Solve/SolveParallel call.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
	})

	// SolvesTotal counts solves by outcome ("feasible", "infeasible", "timeout").
	SolvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mbsolve",
		Subsystem: "astar",
		Name:      "solves_total",
		Help:      "Total solves by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(NodesExpanded, SimulatorInvocations, OpenSetSize, SolveDuration, SolvesTotal)
}

// RecordSolve updates the solve-outcome counters and duration histogram; the
// intended call site is immediately after an astar.Solver.Solve/SolveParallel
// call returns.
func RecordSolve(outcome string, nodesExpanded, simInvocations int, dur time.Duration) {
	NodesExpanded.Add(float64(nodesExpanded))
	SimulatorInvocations.Add(float64(simInvocations))
	SolveDuration.Observe(dur.Seconds())
	SolvesTotal.WithLabelValues(outcome).Inc()
}
