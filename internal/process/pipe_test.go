package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

// waitDone waits for ch to close, failing the test on timeout.
func waitDone(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestPipeRoundTrip(t *testing.T) {
	requireCommand(t, "cat")

	p := NewPipe("cat", []string{"cat"}, testLogger())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var out bytes.Buffer
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, _ = io.Copy(&out, p.Stdout())
	}()

	payload := bytes.Repeat([]byte("frame"), 1000)
	if _, err := p.Stdin().Write(payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := p.CloseInput(); err != nil {
		t.Fatalf("CloseInput() error = %v", err)
	}

	waitDone(t, readDone, time.Second)
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Errorf("got %d bytes, want %d", out.Len(), len(payload))
	}
	if got := p.State(); got != StateExited {
		t.Errorf("State() = %s, want %s", got, StateExited)
	}
}

func TestPipeNonZeroExit(t *testing.T) {
	requireCommand(t, "sh")

	p := NewPipe("fail", []string{"sh", "-c", "echo broken >&2; exit 3"}, testLogger())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, _ = io.Copy(io.Discard, p.Stdout())

	err := p.Wait()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Wait() error = %v, want *ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("broken")) {
		t.Errorf("error %q does not include stderr tail", err)
	}
	if p.State() != StateError {
		t.Errorf("State() = %s, want %s", p.State(), StateError)
	}
}

func TestPipeStopGraceful(t *testing.T) {
	requireCommand(t, "sh")

	p := NewPipe("trap", []string{"sh", "-c", "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"}, testLogger())
	p.SetGracefulTimeout(500 * time.Millisecond)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	go func() { _, _ = io.Copy(io.Discard, p.Stdout()) }()

	time.Sleep(100 * time.Millisecond)
	p.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- p.Wait() }()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("process did not stop")
	}
}

func TestPipeForceKillOnTimeout(t *testing.T) {
	requireCommand(t, "sh")

	p := NewPipe("stubborn", []string{"sh", "-c", "trap '' INT; sleep 10"}, testLogger())
	p.SetGracefulTimeout(50 * time.Millisecond)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	go func() { _, _ = io.Copy(io.Discard, p.Stdout()) }()

	time.Sleep(50 * time.Millisecond)
	p.Stop()
	go func() { _ = p.Wait() }()
	waitDone(t, p.Done(), 2*time.Second)

	if info := p.Info(); info.ExitCode != 137 {
		t.Errorf("exit code = %d, want 137", info.ExitCode)
	}
}

func TestPipeContextCancellation(t *testing.T) {
	requireCommand(t, "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipe("sleep", []string{"sleep", "10"}, testLogger())
	p.SetGracefulTimeout(100 * time.Millisecond)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	go func() {
		_, _ = io.Copy(io.Discard, p.Stdout())
		_ = p.Wait()
	}()

	start := time.Now()
	cancel()
	waitDone(t, p.Done(), time.Second)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
}

func TestPipeStateCallback(t *testing.T) {
	requireCommand(t, "true")

	var mu sync.Mutex
	var seen []State
	p := NewPipe("true", []string{"true"}, testLogger())
	p.OnStateChange(func(_ string, _, next State) {
		mu.Lock()
		seen = append(seen, next)
		mu.Unlock()
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, _ = io.Copy(io.Discard, p.Stdout())
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != StateRunning || seen[1] != StateExited {
		t.Errorf("transitions = %v", seen)
	}
}

func TestPipeNotStarted(t *testing.T) {
	p := NewPipe("idle", []string{"true"}, testLogger())
	if err := p.Wait(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Wait() error = %v", err)
	}
	if _, err := p.Stdin().Write([]byte("x")); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Write() error = %v", err)
	}
	p.Stop()
}

func TestStartMissingBinary(t *testing.T) {
	p := NewPipe("missing", []string{"/nonexistent/binary"}, testLogger())
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if p.State() != StateError {
		t.Errorf("State() = %s", p.State())
	}
}

func TestOutput(t *testing.T) {
	requireCommand(t, "sh")

	out, err := Output(context.Background(), time.Second, "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if string(out) != "hello\n" {
		t.Errorf("Output() = %q", out)
	}

	_, err = Output(context.Background(), 50*time.Millisecond, "sleep", "5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout error = %v", err)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"ffmpeg -i input.mp4", []string{"ffmpeg", "-i", "input.mp4"}, false},
		{`sh -c "echo hello world"`, []string{"sh", "-c", "echo hello world"}, false},
		{`echo 'single quoted'`, []string{"echo", "single quoted"}, false},
		{`echo "it's"`, []string{"echo", "it's"}, false},
		{`echo a\ b`, []string{"echo", "a b"}, false},
		{"  nice   ffmpeg  ", []string{"nice", "ffmpeg"}, false},
		{"", nil, false},
		{`echo "unterminated`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseCommand() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("arg %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
