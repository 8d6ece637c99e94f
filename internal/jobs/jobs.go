// Package jobs runs decode and transcode work in the background with a
// bounded number of concurrent jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/metrics"
)

// State of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("job runner closed")

// Job is a snapshot of one submitted job.
type Job struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	State      State     `json:"state"`
	Request    any       `json:"request,omitempty"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Code       string    `json:"code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Done reports whether the job has finished.
func (j Job) Done() bool {
	return j.State == StateSucceeded || j.State == StateFailed
}

// Elapsed is the run time, or the time running so far.
func (j Job) Elapsed() time.Duration {
	switch {
	case j.StartedAt.IsZero():
		return 0
	case j.FinishedAt.IsZero():
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Func is the work of a job. The result is stored on the job.
type Func func(ctx context.Context) (any, error)

// Options configures a Runner.
type Options struct {
	// MaxConcurrent jobs run at once. Zero means one.
	MaxConcurrent int
	// History is how many finished jobs are kept. Zero means 100.
	History int
	// OnComplete runs after every job, outside the runner lock.
	OnComplete func(Job)
	Logger     logging.Logger
}

type entry struct {
	job  Job
	done chan struct{}
}

// Runner executes submitted jobs.
type Runner struct {
	sem     *semaphore.Weighted
	ctx     context.Context
	cancel  context.CancelFunc
	history int
	onDone  func(Job)
	logger  logging.Logger

	mu     sync.RWMutex
	jobs   map[string]*entry
	order  []string
	seq    int
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.History <= 0 {
		opts.History = 100
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("jobs")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		ctx:     ctx,
		cancel:  cancel,
		history: opts.History,
		onDone:  opts.OnComplete,
		logger:  opts.Logger,
		jobs:    make(map[string]*entry),
	}
}

// Submit queues fn and returns the queued job.
func (r *Runner) Submit(kind string, request any, fn Func) (Job, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Job{}, ErrClosed
	}
	r.seq++
	e := &entry{
		job: Job{
			ID:        fmt.Sprintf("job-%d", r.seq),
			Kind:      kind,
			State:     StateQueued,
			Request:   request,
			CreatedAt: time.Now(),
		},
		done: make(chan struct{}),
	}
	r.jobs[e.job.ID] = e
	r.order = append(r.order, e.job.ID)
	r.trim()
	snapshot := e.job
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.Info("Job queued", "job_id", snapshot.ID, "kind", kind)
	go r.run(e, fn)
	return snapshot, nil
}

func (r *Runner) run(e *entry, fn Func) {
	defer r.wg.Done()

	var (
		result any
		err    error
	)
	if err = r.sem.Acquire(r.ctx, 1); err == nil {
		r.update(e, func(j *Job) {
			j.State = StateRunning
			j.StartedAt = time.Now()
		})
		result, err = fn(r.ctx)
		r.sem.Release(1)
	} else {
		err = ErrClosed
	}

	job := r.update(e, func(j *Job) {
		j.FinishedAt = time.Now()
		if j.StartedAt.IsZero() {
			j.StartedAt = j.FinishedAt
		}
		j.Result = result
		if err != nil {
			j.State = StateFailed
			j.Error = err.Error()
			j.Code = media.CodeOf(err)
			return
		}
		j.State = StateSucceeded
	})
	close(e.done)

	metrics.ObserveJob(job.Kind, string(job.State), job.Elapsed())
	if err != nil {
		r.logger.Warn("Job failed", "job_id", job.ID, "kind", job.Kind, "error", err, "elapsed", job.Elapsed())
	} else {
		r.logger.Info("Job succeeded", "job_id", job.ID, "kind", job.Kind, "elapsed", job.Elapsed())
	}
	if r.onDone != nil {
		r.onDone(job)
	}
}

func (r *Runner) update(e *entry, fn func(*Job)) Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&e.job)
	return e.job
}

// trim drops the oldest finished jobs beyond the history limit. Needs mu.
func (r *Runner) trim() {
	excess := len(r.order) - r.history
	if excess <= 0 {
		return
	}
	r.order = slices.DeleteFunc(r.order, func(id string) bool {
		if excess > 0 && r.jobs[id].job.Done() {
			delete(r.jobs, id)
			excess--
			return true
		}
		return false
	})
}

// Get returns a job by ID.
func (r *Runner) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

// List returns every known job, newest first.
func (r *Runner) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.jobs[r.order[i]].job)
	}
	return out
}

// Wait blocks until the job finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("job %s not found", id)
	}
	select {
	case <-e.done:
		r.mu.RLock()
		defer r.mu.RUnlock()
		return e.job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Close stops accepting jobs, fails the queued ones and waits for running
// jobs until ctx is done.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
