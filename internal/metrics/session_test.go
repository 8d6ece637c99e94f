package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTransitionActiveGauge(t *testing.T) {
	const kind = "gauge-test"
	active := sessionsActive.WithLabelValues(kind)
	start := testutil.ToFloat64(active)

	ObserveTransition(kind, "idle", "configuring", false)
	ObserveTransition(kind, "configuring", "running", false)
	if got := testutil.ToFloat64(active) - start; got != 1 {
		t.Fatalf("active after start = %v, want 1", got)
	}

	ObserveTransition(kind, "running", "draining", false)
	ObserveTransition(kind, "draining", "closed", true)
	if got := testutil.ToFloat64(active) - start; got != 0 {
		t.Errorf("active after close = %v, want 0", got)
	}

	// Idle straight to a terminal state was never counted as active.
	ObserveTransition(kind, "idle", "failed", true)
	if got := testutil.ToFloat64(active) - start; got != 0 {
		t.Errorf("active after idle failure = %v, want 0", got)
	}

	if got := testutil.ToFloat64(sessionTransitions.WithLabelValues(kind, "closed")); got != 1 {
		t.Errorf("closed transitions = %v, want 1", got)
	}
}

func TestObserveUnits(t *testing.T) {
	const track = "units-test"
	ObserveAccepted(track)
	ObserveAccepted(track)
	ObserveDrop(track, "queue_full")
	ObserveSample(track, 100)
	ObserveSample(track, 28)

	if got := testutil.ToFloat64(unitsAccepted.WithLabelValues(track)); got != 2 {
		t.Errorf("accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(unitsDropped.WithLabelValues(track, "queue_full")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(samplesWritten.WithLabelValues(track)); got != 2 {
		t.Errorf("samples = %v, want 2", got)
	}
	if got := testutil.ToFloat64(bytesWritten.WithLabelValues(track)); got != 128 {
		t.Errorf("bytes = %v, want 128", got)
	}
}

func TestObserveJob(t *testing.T) {
	const kind = "job-test"
	ObserveJob(kind, "succeeded", 250*time.Millisecond)
	ObserveJob(kind, "failed", time.Second)

	if got := testutil.ToFloat64(jobsCompleted.WithLabelValues(kind, "succeeded")); got != 1 {
		t.Errorf("succeeded = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(jobDuration); got < 1 {
		t.Errorf("duration series = %d, want at least 1", got)
	}
}
