package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned by Submit when the job queue has no free slot.
	ErrQueueFull = errors.New("job queue is full")

	// ErrDispatcherStopped is returned by Submit after Stop has been called.
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

// Job is a unit of background work triggered by a task status change.
type Job struct {
	// Name identifies the kind of work in logs, e.g. "cascade".
	Name string

	// TaskID is the task that triggered the job.
	TaskID uuid.UUID

	// Run performs the work.
	Run func(ctx context.Context) error
}

// JobSubmitter accepts background jobs without blocking the caller.
type JobSubmitter interface {
	Submit(ctx context.Context, job Job) error
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	// WorkerCount determines how many jobs run concurrently.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// QueueSize is the number of jobs that can wait for a worker.
	QueueSize int

	// JobTimeout bounds a single job run. Zero means no timeout.
	JobTimeout time.Duration
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount: 4,
		QueueSize:   256,
		JobTimeout:  30 * time.Second,
	}
}

type queuedJob struct {
	ctx context.Context
	job Job
}

// Compile-time check to ensure Dispatcher implements JobSubmitter.
var _ JobSubmitter = (*Dispatcher)(nil)

// Dispatcher runs jobs on a fixed pool of worker goroutines fed by a bounded
// queue.
type Dispatcher struct {
	jobs   chan queuedJob
	config DispatcherConfig
	logger *slog.Logger

	mu         sync.RWMutex
	stopped    bool
	started    bool
	wg         sync.WaitGroup
	errHandler func(job Job, err error)
}

// NewDispatcher creates a Dispatcher. Call Start to begin processing.
func NewDispatcher(config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	logger = logger.With("component", "dispatcher")

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	d := &Dispatcher{
		jobs:   make(chan queuedJob, config.QueueSize),
		config: config,
		logger: logger,
	}
	d.errHandler = func(job Job, err error) {
		d.logger.Error("background job failed",
			"job", job.Name,
			"task_id", job.TaskID,
			"error", err)
	}
	return d
}

// SetErrorHandler replaces the handler called when a job returns an error.
// It must be called before Start.
func (d *Dispatcher) SetErrorHandler(handler func(job Job, err error)) {
	d.errHandler = handler
}

// Start launches the worker goroutines. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("dispatcher started",
		"worker_count", d.config.WorkerCount,
		"queue_size", d.config.QueueSize)
}

// Submit queues job without blocking. The job runs with a context that keeps
// ctx's values but not its cancellation, so it outlives the request that
// triggered it.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.jobs <- queuedJob{ctx: context.WithoutCancel(ctx), job: job}:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s job for task %s", ErrQueueFull, job.Name, job.TaskID)
	}
}

// Stop refuses new jobs, lets the workers drain the queue and waits for them
// until ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher did not drain before shutdown: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("starting worker", "worker_id", id)
	for queued := range d.jobs {
		d.run(queued, id)
	}
	d.logger.Debug("job channel closed, stopping worker", "worker_id", id)
}

func (d *Dispatcher) run(queued queuedJob, workerID int) {
	job := queued.job
	logger := d.logger.With(
		"job", job.Name,
		"task_id", job.TaskID,
		"worker_id", workerID,
	)

	ctx := queued.ctx
	if d.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.JobTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("background job panicked", "panic", p)
			d.errHandler(job, fmt.Errorf("job panicked: %v", p))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		d.errHandler(job, err)
		return
	}
	logger.Debug("background job finished", "duration", time.Since(start))
}
