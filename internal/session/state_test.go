package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMachineTransitions(t *testing.T) {
	var tr transitions
	m := newMachine(KindDecode, "d-1", tr.record)

	if m.transition(StateRunning, StateDraining) {
		t.Error("transition from wrong state succeeded")
	}
	if !m.transition(StateIdle, StateConfiguring) {
		t.Fatal("idle -> configuring failed")
	}
	cause := errors.New("boom")
	if !m.fail(cause) {
		t.Fatal("fail from configuring returned false")
	}
	if m.fail(cause) {
		t.Error("fail after terminal state returned true")
	}
	if m.transition(StateFailed, StateClosed) {
		t.Error("left a terminal state")
	}

	if len(tr.list) != 2 {
		t.Fatalf("notified %d transitions", len(tr.list))
	}
	last := tr.list[1]
	if last.Kind != KindDecode || last.ID != "d-1" || last.From != StateConfiguring || last.To != StateFailed || last.Err != cause {
		t.Errorf("last change = %+v", last)
	}
}

func TestStateText(t *testing.T) {
	b, err := json.Marshal(map[string]State{"s": StateDraining})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"s":"draining"}` {
		t.Errorf("json = %s", b)
	}
	if State(42).String() != "state(42)" {
		t.Errorf("unknown state = %s", State(42))
	}
	if !StateClosed.Terminal() || StateDraining.Terminal() {
		t.Error("Terminal wrong")
	}
}

func TestTimelineOrigin(t *testing.T) {
	tl := newTimeline()
	if got := tl.normalize(time.Second); got != 0 {
		t.Errorf("normalize before origin = %v", got)
	}
	tl.observe(5 * time.Second)
	tl.observe(2 * time.Second)

	tests := []struct {
		in, want time.Duration
	}{
		{5 * time.Second, 0},
		{5*time.Second + 40*time.Millisecond, 40 * time.Millisecond},
		{4 * time.Second, 0},
	}
	for _, tt := range tests {
		if got := tl.normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWorkerTimestampsNeverRegress(t *testing.T) {
	w := &encodeWorker{clock: newTimeline()}
	w.clock.observe(time.Second)
	got := []time.Duration{
		w.timestamp(1100 * time.Millisecond),
		w.timestamp(1050 * time.Millisecond),
		w.timestamp(1200 * time.Millisecond),
	}
	want := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("timestamp %d = %v, want %v", i, got[i], want[i])
		}
	}
}
