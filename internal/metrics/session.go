// Package metrics provides Prometheus metrics for sessions, jobs and
// encoder subprocesses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "avgraphics"

var (
	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session state transitions by session kind and target state",
	}, []string{"kind", "state"})

	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions that left idle and have not terminated",
	}, []string{"kind"})

	unitsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "units_accepted_total",
		Help:      "Raw units queued for encoding",
	}, []string{"track"})

	unitsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "units_dropped_total",
		Help:      "Raw units dropped before encoding",
	}, []string{"track", "reason"})

	samplesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mux",
		Name:      "samples_written_total",
		Help:      "Compressed samples written to containers",
	}, []string{"track"})

	bytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mux",
		Name:      "bytes_written_total",
		Help:      "Compressed payload bytes written to containers",
	}, []string{"track"})

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "completed_total",
		Help:      "Background jobs by kind and result",
	}, []string{"kind", "result"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Background job run time",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"kind"})
)

// ObserveTransition counts a transition and tracks the active gauge.
func ObserveTransition(kind, from, to string, terminal bool) {
	sessionTransitions.WithLabelValues(kind, to).Inc()
	switch {
	case from == "idle" && !terminal:
		sessionsActive.WithLabelValues(kind).Inc()
	case from != "idle" && terminal:
		sessionsActive.WithLabelValues(kind).Dec()
	}
}

// ObserveAccepted counts a queued raw unit.
func ObserveAccepted(track string) {
	unitsAccepted.WithLabelValues(track).Inc()
}

// ObserveDrop counts a dropped raw unit.
func ObserveDrop(track, reason string) {
	unitsDropped.WithLabelValues(track, reason).Inc()
}

// ObserveSample counts a sample handed to a muxer.
func ObserveSample(track string, size int) {
	samplesWritten.WithLabelValues(track).Inc()
	bytesWritten.WithLabelValues(track).Add(float64(size))
}

// ObserveJob records a finished job.
func ObserveJob(kind, result string, elapsed time.Duration) {
	jobsCompleted.WithLabelValues(kind, result).Inc()
	jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
