// internal/app/system/tasks/runner.go

// Package tasks runs the service's periodic maintenance jobs, currently the
// expired session sweep, on their own goroutines with graceful shutdown.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named function executed immediately at startup and then on every
// tick of its interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner owns the goroutines for registered jobs. Register before Start;
// Stop waits for in-flight runs up to its context deadline.
type Runner struct {
	log    *zap.Logger
	jobs   []Job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu       sync.Mutex
	inFlight map[string]time.Time
}

// New creates an empty runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{log: logger, inFlight: make(map[string]time.Time)}
}

// Register adds a job. Not safe to call after Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start launches one goroutine per registered job.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, job := range r.jobs {
		r.wg.Add(1)
		go func(j Job) {
			defer r.wg.Done()
			r.loop(ctx, j)
		}(job)
	}

	r.log.Info("task runner started", zap.Int("jobs", len(r.jobs)))
}

// Stop cancels all jobs and waits for them to finish. It returns ctx.Err()
// if the deadline passes first, logging the jobs still in flight.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		stuck := make([]string, 0, len(r.inFlight))
		for name, since := range r.inFlight {
			stuck = append(stuck, fmt.Sprintf("%s (running %s)", name, time.Since(since).Truncate(time.Second)))
		}
		r.mu.Unlock()
		r.log.Warn("task runner shutdown timed out", zap.Strings("in_flight", stuck))
		return ctx.Err()
	}
}

// RunOnce executes a registered job by name, outside its schedule.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("no job registered with name %q", name)
}

func (r *Runner) loop(ctx context.Context, job Job) {
	r.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, job)
		}
	}
}

func (r *Runner) execute(ctx context.Context, job Job) {
	start := time.Now()
	r.mu.Lock()
	r.inFlight[job.Name] = start
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.inFlight, job.Name)
		r.mu.Unlock()
	}()

	err := job.Run(ctx)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		r.log.Debug("job completed", zap.String("job", job.Name), zap.Duration("took", elapsed))
	case ctx.Err() != nil:
		// Shutdown raced the run; not a failure.
		r.log.Debug("job cancelled", zap.String("job", job.Name))
	default:
		r.log.Error("job failed", zap.String("job", job.Name), zap.Duration("took", elapsed), zap.Error(err))
	}
}
