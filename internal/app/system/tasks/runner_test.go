package tasks_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/subbanorg/subban-server/internal/app/system/tasks"
)

func TestRunner_RunsJobsImmediately(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var first, second atomic.Int32
	runner.Register(tasks.Job{
		Name:     "first",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			first.Add(1)
			return nil
		},
	})
	runner.Register(tasks.Job{
		Name:     "second",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			second.Add(1)
			return nil
		},
	})

	runner.Start()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if first.Load() != 1 || second.Load() != 1 {
		t.Errorf("expected each job to run once at start, got %d and %d", first.Load(), second.Load())
	}
}

func TestRunner_StopCancelsJobContext(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	cancelled := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "waiter",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	})

	runner.Start()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("job context was never cancelled")
	}
}

func TestRunner_StopTimesOutOnStuckJob(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	started := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "stuck",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(started)
			// Ignores the context to force the shutdown timeout path.
			time.Sleep(3 * time.Second)
			return nil
		},
	})

	runner.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := runner.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want DeadlineExceeded", err)
	}
}

func TestRunner_RunOnce(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var ran atomic.Int32
	runner.Register(tasks.Job{
		Name:     "manual",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		},
	})

	if err := runner.RunOnce(context.Background(), "manual"); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if ran.Load() != 1 {
		t.Errorf("job ran %d times, want 1", ran.Load())
	}

	if err := runner.RunOnce(context.Background(), "missing"); err == nil {
		t.Error("RunOnce() with unknown name should error")
	}
}
