// Package detach runs fire-and-forget work that must outlive the request that
// started it.
package detach

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/metrics"
	"github.com/xenwatch/identity-notify-service/internal/observability"
)

// Runner starts detached tasks. Callers never join a task; errors and panics
// are logged, reported and counted here.
type Runner struct {
	logger  *zap.Logger
	metrics *metrics.Collector
	wg      sync.WaitGroup
}

func NewRunner(logger *zap.Logger, m *metrics.Collector) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, metrics: m}
}

// Go runs fn in a new goroutine. The task keeps the values of ctx but not its
// cancellation or deadline.
func (r *Runner) Go(ctx context.Context, name string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic in detached task %s: %v", name, rec)
				r.logger.Error("detached task panicked", zap.String("task", name), zap.Error(err))
				observability.CaptureErr(err)
				r.metrics.DetachedTask(name, "panic")
			}
		}()

		if err := fn(ctx); err != nil {
			r.logger.Error("detached task failed", zap.String("task", name), zap.Error(err))
			observability.CaptureErr(err)
			r.metrics.DetachedTask(name, "error")
			return
		}
		r.metrics.DetachedTask(name, "ok")
	}()
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown waits for outstanding tasks or gives up when ctx is done.
func (r *Runner) Shutdown(ctx context.Context) error {
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
