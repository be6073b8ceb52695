// Package tasks runs work that must happen after a Slack request has been
// acknowledged: event processing and deferred persistence.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shawn/slack-gpt-tenancy/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Submitter accepts background work.
type Submitter interface {
	Submit(ctx context.Context, t Task)
}

// Runner executes submitted tasks with bounded concurrency. Task errors
// are logged and counted; they never reach the submitter.
type Runner struct {
	wg      sync.WaitGroup
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewRunner creates a Runner with at most limit concurrent tasks, each
// bounded by timeout. A limit of zero or less means no bound.
func NewRunner(limit int, timeout time.Duration) *Runner {
	r := &Runner{timeout: timeout}
	if limit > 0 {
		r.sem = semaphore.NewWeighted(int64(limit))
	}
	return r
}

// Submit schedules t and returns at once. When the concurrency limit is
// reached t waits for a free slot on its own goroutine. The task context
// keeps ctx's values but not its cancellation, since the request that
// submitted it has already finished.
func (r *Runner) Submit(ctx context.Context, t Task) {
	base := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.sem != nil {
			if err := r.sem.Acquire(base, 1); err != nil {
				return
			}
			defer r.sem.Release(1)
		}
		ctx, cancel := context.WithTimeout(base, r.timeout)
		defer cancel()
		if err := t.Run(ctx); err != nil {
			slog.Error("background task failed", "task", t.Name, "err", err)
			metrics.Tasks.WithLabelValues(t.Name, "error").Inc()
			return
		}
		metrics.Tasks.WithLabelValues(t.Name, "ok").Inc()
	}()
}

// Wait blocks until every submitted task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Inline runs tasks synchronously in the caller. Used by tests.
type Inline struct{}

func (Inline) Submit(ctx context.Context, t Task) {
	if err := t.Run(context.WithoutCancel(ctx)); err != nil {
		slog.Error("background task failed", "task", t.Name, "err", err)
	}
}
