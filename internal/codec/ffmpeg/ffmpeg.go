// Package ffmpeg implements the video/avc codecs on top of an ffmpeg
// subprocess. Raw frames go to stdin; stdout is drained by a reader
// goroutine at all times so a full pipe can never block a write.
package ffmpeg

import (
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wasd845/AVGraphics/internal/encoders"
	ffcmd "github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/process"
)

const (
	readChunk           = 64 * 1024
	defaultDrainTimeout = 10 * time.Second
)

var pipeSeq atomic.Uint64

// Config is shared by the encoder and decoder factories.
type Config struct {
	Binary string
	// Selector picks the H.264 encoder. Nil picks the software fallback.
	Selector *encoders.Selector
	// DrainTimeout bounds how long end of stream waits for ffmpeg to exit.
	DrainTimeout time.Duration
	// ProgressDir holds the per-encoder progress sockets. Empty disables
	// progress metrics.
	ProgressDir string
	Logger      logging.Logger
}

func (c Config) binary() string {
	if c.Binary == "" {
		return ffcmd.DefaultBinary
	}
	return c.Binary
}

func (c Config) drainTimeout() time.Duration {
	if c.DrainTimeout <= 0 {
		return defaultDrainTimeout
	}
	return c.DrainTimeout
}

func (c Config) logger() logging.Logger {
	if c.Logger == nil {
		return logging.GetLogger("codec")
	}
	return c.Logger
}

func nextPipeID(kind string) string {
	return fmt.Sprintf("%s-%d", kind, pipeSeq.Add(1))
}

// newPipe wires a process with ffmpeg log parsing.
func newPipe(id string, args []string, logger logging.Logger) *process.Pipe {
	p := process.NewPipe(id, args, logger)
	p.SetLogParser(logging.GetLogger("ffmpeg"), ffcmd.ParseLogLine)
	p.SetGracefulTimeout(2 * time.Second)
	return p
}

// outputQueue collects what the reader goroutine pulls off stdout.
type outputQueue struct {
	mu    sync.Mutex
	items [][]byte
	err   error
	done  chan struct{}
}

func newOutputQueue() *outputQueue {
	return &outputQueue{done: make(chan struct{})}
}

func (q *outputQueue) push(b []byte) {
	q.mu.Lock()
	q.items = append(q.items, b)
	q.mu.Unlock()
}

func (q *outputQueue) finish(err error) {
	q.mu.Lock()
	q.err = err
	q.mu.Unlock()
	close(q.done)
}

// take removes and returns everything currently queued.
func (q *outputQueue) take() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// readErr is the reader's terminal error once done is closed.
func (q *outputQueue) readErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// readAccessUnits splits an Annex B stream into access units.
func readAccessUnits(r io.Reader, q *outputQueue) {
	var s auSplitter
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, au := range s.push(buf[:n]) {
				q.push(au)
			}
		}
		if err != nil {
			if au := s.flush(); au != nil {
				q.push(au)
			}
			if err == io.EOF {
				err = nil
			}
			q.finish(err)
			return
		}
	}
}

// readFrames cuts stdout into fixed-size raw frames.
func readFrames(r io.Reader, size int, q *outputQueue) {
	for {
		frame := make([]byte, size)
		n, err := io.ReadFull(r, frame)
		switch {
		case err == nil:
			q.push(frame)
		case err == io.EOF:
			q.finish(nil)
			return
		case err == io.ErrUnexpectedEOF:
			q.finish(fmt.Errorf("truncated frame: %d of %d bytes", n, size))
			return
		default:
			q.finish(err)
			return
		}
	}
}

// ptsQueue maps outputs back to input timestamps in arrival order.
type ptsQueue struct {
	items []int64
	last  int64
}

func (p *ptsQueue) push(pts int64) {
	p.items = append(p.items, pts)
}

// pop returns the oldest pending timestamp, or the last one handed out
// when the codec produced more outputs than inputs.
func (p *ptsQueue) pop() int64 {
	if len(p.items) == 0 {
		return p.last
	}
	p.last = p.items[0]
	p.items = p.items[1:]
	return p.last
}

func fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
