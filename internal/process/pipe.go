package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/wasd845/AVGraphics/internal/logging"
)

// LogParser maps one stderr line to a level, a message and extra log
// attributes.
type LogParser func(line string) (level slog.Level, msg string, attrs []any)

// ErrNotStarted is returned by operations that need a running process.
var ErrNotStarted = errors.New("process not started")

// Pipe is a subprocess whose stdin and stdout are owned by the caller.
//
// The caller must read Stdout to EOF before calling Wait.
type Pipe struct {
	id              string
	args            []string
	logger          logging.Logger
	processLogger   logging.Logger // logger for stderr (nil = use logger)
	logParser       LogParser      // parses stderr for log level (nil = no parsing)
	gracefulTimeout time.Duration  // timeout after SIGINT before force kill
	onStateChange   func(id string, old, new State)

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	startedAt time.Time
	exitCode  int

	stderrDone chan struct{}
	exited     chan struct{}
	waitOnce   sync.Once
	waitErr    error
	tail       *tailBuffer
}

// NewPipe creates a pipe for args. args[0] is the executable.
func NewPipe(id string, args []string, logger logging.Logger) *Pipe {
	return &Pipe{
		id:              id,
		args:            args,
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		state:           StateIdle,
		exited:          make(chan struct{}),
		tail:            newTailBuffer(8),
	}
}

// ID returns the pipe identifier.
func (p *Pipe) ID() string { return p.id }

// Args returns the argv the pipe runs.
func (p *Pipe) Args() []string { return p.args }

// SetLogParser sets a custom logger and log parser for stderr.
// The logger is used for process output (e.g., module="ffmpeg").
// The parser extracts log level from process-specific output formats.
func (p *Pipe) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetGracefulTimeout sets how long Stop waits after SIGINT before killing.
func (p *Pipe) SetGracefulTimeout(d time.Duration) {
	p.gracefulTimeout = d
}

// OnStateChange registers a callback invoked on every state transition.
// Must be called before Start.
func (p *Pipe) OnStateChange(fn func(id string, old, new State)) {
	p.onStateChange = fn
}

// Start launches the subprocess. When ctx is cancelled the process is
// stopped as if Stop had been called.
func (p *Pipe) Start(ctx context.Context) error {
	if len(p.args) == 0 {
		return fmt.Errorf("empty command")
	}

	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("process %s already started", p.id)
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		p.setState(StateError)
		p.logger.Error("Failed to start process", "id", p.id, "error", err, "command", strings.Join(p.args, " "))
		return fmt.Errorf("start %s: %w", p.args[0], err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	p.startedAt = time.Now()
	p.stderrDone = make(chan struct{})
	p.mu.Unlock()

	p.setState(StateRunning)
	p.logger.Debug("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", strings.Join(p.args, " "))

	go func() {
		defer close(p.stderrDone)
		p.streamOutput(stderr)
	}()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.logger.Info("Context cancelled, stopping process", "id", p.id)
				p.Stop()
			case <-p.exited:
			}
		}()
	}

	return nil
}

// Stdin is the process input. Closing it signals end of input.
func (p *Pipe) Stdin() io.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return errWriter{}
	}
	return p.stdin
}

// Stdout is the process output.
func (p *Pipe) Stdout() io.Reader {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdout == nil {
		return errReader{}
	}
	return p.stdout
}

// CloseInput closes stdin. Safe to call more than once.
func (p *Pipe) CloseInput() error {
	p.mu.Lock()
	stdin := p.stdin
	p.mu.Unlock()
	if stdin == nil {
		return ErrNotStarted
	}
	if err := stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Wait blocks until the process exits and returns an *ExitError for a
// non-zero status. The error message includes the last stderr lines.
func (p *Pipe) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return ErrNotStarted
	}

	p.waitOnce.Do(func() {
		<-p.stderrDone
		err := cmd.Wait()
		code := exitCodeFromError(err)

		p.mu.Lock()
		p.exitCode = code
		stopping := p.state == StateStopping
		p.mu.Unlock()

		switch {
		case code == 0 || stopping:
			p.setState(StateExited)
		default:
			p.setState(StateError)
			p.waitErr = fmt.Errorf("%w: %s", &ExitError{ID: p.id, Code: code}, p.tail.String())
		}
		close(p.exited)
		p.logger.Debug("Process exited", "id", p.id, "exit_code", code)
	})
	return p.waitErr
}

// Done is closed once Wait has observed the exit.
func (p *Pipe) Done() <-chan struct{} {
	return p.exited
}

// Stop sends SIGINT to the process and kills it if it has not exited within
// the graceful timeout. It does not wait.
func (p *Pipe) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	if cmd == nil || cmd.Process == nil || p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.setState(StateStopping)

	p.logger.Debug("Sending SIGINT to process", "id", p.id, "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "id", p.id, "error", err)
	}

	go func() {
		select {
		case <-p.exited:
		case <-time.After(p.gracefulTimeout):
			p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", p.gracefulTimeout)
			p.Kill()
		}
	}()
}

// Kill force kills the process group.
func (p *Pipe) Kill() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		// "os: process already finished" is OK - process exited between timeout and kill
		if !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "id", p.id, "error", err)
		}
	}
}

// State returns the current state.
func (p *Pipe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Info returns a snapshot of the process.
func (p *Pipe) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := Info{ID: p.id, State: p.state, StartedAt: p.startedAt, ExitCode: p.exitCode}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

func (p *Pipe) setState(next State) {
	p.mu.Lock()
	old := p.state
	p.state = next
	p.mu.Unlock()

	if old != next && p.onStateChange != nil {
		p.onStateChange(p.id, old, next)
	}
}

// streamOutput forwards stderr lines to the process logger.
func (p *Pipe) streamOutput(reader io.Reader) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		p.tail.Add(line)

		level, msg, attrs := slog.LevelDebug, line, []any(nil)
		if p.logParser != nil {
			level, msg, attrs = p.logParser(line)
		}
		args := append([]any{"id", p.id}, attrs...)

		switch {
		case level >= slog.LevelError:
			logger.Error(msg, args...)
		case level >= slog.LevelWarn:
			logger.Warn(msg, args...)
		case level >= slog.LevelInfo:
			logger.Info(msg, args...)
		default:
			logger.Debug(msg, args...)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "id", p.id, "error", err)
	}
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, ErrNotStarted }

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, ErrNotStarted }

// tailBuffer keeps the last n lines of output.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	size  int
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (t *tailBuffer) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.size {
		t.lines = t.lines[len(t.lines)-t.size:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}
