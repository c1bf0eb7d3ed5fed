package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds runner settings.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// DefaultConfig returns default runner settings.
func DefaultConfig() Config {
	return Config{
		Workers:   2,
		QueueSize: 64,
		Timeout:   10 * time.Second,
	}
}

// Runner launches jobs on a fixed pool of workers fed by a bounded queue.
type Runner struct {
	launcher  Launcher
	onFailure FailureFunc
	cfg       Config
	logger    *slog.Logger

	queue chan Job

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewRunner creates a runner. A nil launcher makes every Submit fail with
// ErrUnavailable.
func NewRunner(launcher Launcher, cfg Config, onFailure FailureFunc, logger *slog.Logger) *Runner {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		launcher:  launcher,
		onFailure: onFailure,
		cfg:       cfg,
		logger:    logger.With("component", "generation_runner"),
		queue:     make(chan Job, cfg.QueueSize),
	}
}

// Submit queues a job and returns its id. It never blocks.
func (r *Runner) Submit(job Job) (string, error) {
	if r.launcher == nil {
		return "", ErrUnavailable
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return "", ErrStopped
	}

	select {
	case r.queue <- job:
		r.logger.Info("Generation job queued", "job_id", job.ID, "account_id", job.AccountID)
		return job.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is done. In-flight launches
// finish; jobs still queued at shutdown are reported as failed.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("generation runner already started")
	}
	r.started = true
	r.mu.Unlock()

	r.logger.Info("Generation runner started", "workers", r.cfg.Workers, "queue_size", r.cfg.QueueSize)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id)
		}(i)
	}

	<-ctx.Done()

	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	wg.Wait()
	r.drain()

	r.logger.Info("Generation runner stopped", "reason", ctx.Err())
	return nil
}

func (r *Runner) worker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case job := <-r.queue:
			r.launch(ctx, job, id)
		}
	}
}

func (r *Runner) launch(ctx context.Context, job Job, workerID int) {
	// A dequeued job runs to completion during shutdown, bounded by the job timeout.
	launchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := r.launcher.Launch(launchCtx, job); err != nil {
		r.logger.Warn("Generation launch failed",
			"job_id", job.ID,
			"account_id", job.AccountID,
			"worker", workerID,
			"error", err)
		r.fail(launchCtx, job, err)
		return
	}
	r.logger.Info("Generation job launched",
		"job_id", job.ID,
		"account_id", job.AccountID,
		"worker", workerID,
		"duration", time.Since(start))
}

func (r *Runner) drain() {
	for {
		select {
		case job := <-r.queue:
			r.logger.Warn("Dropping queued generation job at shutdown", "job_id", job.ID, "account_id", job.AccountID)
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
			r.fail(ctx, job, ErrStopped)
			cancel()
		default:
			return
		}
	}
}

func (r *Runner) fail(ctx context.Context, job Job, err error) {
	if r.onFailure == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Generation failure handler panicked", "job_id", job.ID, "panic", fmt.Sprint(rec))
		}
	}()
	r.onFailure(ctx, job, err)
}
