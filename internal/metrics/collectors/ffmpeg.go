// Package collectors feeds the metrics package from external sources.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/metrics"
)

// FFmpegCollector receives ffmpeg -progress blocks on a Unix socket and
// publishes them as metrics for one process.
type FFmpegCollector struct {
	logger     logging.Logger
	socketPath string
	process    string

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewFFmpegCollector creates a collector for the process with the given ID.
func NewFFmpegCollector(socketPath, process string) *FFmpegCollector {
	return &FFmpegCollector{
		logger:     logging.GetLogger("metrics"),
		socketPath: socketPath,
		process:    process,
		conns:      make(map[net.Conn]struct{}),
	}
}

// URL is the -progress target for ffmpeg.
func (f *FFmpegCollector) URL() string {
	return "unix://" + f.socketPath
}

// Start listens on the socket. The listener exists when Start returns, so
// ffmpeg can be launched right after. Cancelling ctx stops the collector.
func (f *FFmpegCollector) Start(ctx context.Context) error {
	if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("Failed to clean up old progress socket", "socket", f.socketPath, "error", err)
	}
	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", f.socketPath, err)
	}

	f.mu.Lock()
	f.listener = listener
	f.mu.Unlock()

	f.wg.Add(1)
	go f.accept(listener)

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			f.Stop()
		}()
	}
	f.logger.Debug("Progress collector listening", "process", f.process, "socket", f.socketPath)
	return nil
}

// Stop closes the socket, waits for open connections and removes the
// process's metrics. Safe to call more than once.
func (f *FFmpegCollector) Stop() {
	f.stopOnce.Do(func() {
		f.mu.Lock()
		f.stopped = true
		if f.listener != nil {
			f.listener.Close()
		}
		for conn := range f.conns {
			conn.Close()
		}
		f.mu.Unlock()

		f.wg.Wait()
		os.Remove(f.socketPath)
		metrics.DeleteFFmpegProgress(f.process)
	})
}

func (f *FFmpegCollector) accept(listener net.Listener) {
	defer f.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				f.logger.Warn("Progress socket accept failed", "process", f.process, "error", err)
			}
			return
		}

		f.mu.Lock()
		if f.stopped {
			f.mu.Unlock()
			conn.Close()
			return
		}
		f.conns[conn] = struct{}{}
		f.wg.Add(1)
		f.mu.Unlock()

		go f.handleConnection(conn)
	}
}

func (f *FFmpegCollector) handleConnection(conn net.Conn) {
	defer f.wg.Done()
	defer func() {
		f.mu.Lock()
		delete(f.conns, conn)
		f.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	block := make(map[string]string)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		block[key] = value

		// Every block ends with progress=continue or progress=end.
		if key == "progress" {
			f.publish(block)
			block = make(map[string]string)
		}
	}
}

func (f *FFmpegCollector) publish(block map[string]string) {
	if frames, err := strconv.ParseFloat(block["frame"], 64); err == nil {
		metrics.SetFFmpegFrames(f.process, frames)
	}
	if fps, err := strconv.ParseFloat(block["fps"], 64); err == nil {
		metrics.SetFFmpegFPS(f.process, fps)
	}
	if kbps, err := strconv.ParseFloat(strings.TrimSuffix(block["bitrate"], "kbits/s"), 64); err == nil {
		metrics.SetFFmpegBitrate(f.process, kbps)
	}
	if dropped, err := strconv.ParseFloat(block["drop_frames"], 64); err == nil {
		metrics.SetFFmpegDroppedFrames(f.process, dropped)
	}
	if dup, err := strconv.ParseFloat(block["dup_frames"], 64); err == nil {
		metrics.SetFFmpegDuplicateFrames(f.process, dup)
	}
	if speed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(block["speed"], "x")), 64); err == nil {
		metrics.SetFFmpegSpeed(f.process, speed)
	}
}
