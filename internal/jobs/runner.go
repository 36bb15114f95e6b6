// Package jobs runs periodic background work.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/metrics"
	"github.com/xenwatch/identity-notify-service/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx     context.Context
	logger  *zap.Logger
	metrics *metrics.Collector
	wg      sync.WaitGroup
}

// New returns a runner whose jobs stop when ctx is cancelled.
func New(ctx context.Context, logger *zap.Logger, m *metrics.Collector) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{ctx: ctx, logger: logger, metrics: m}
}

// Every runs fn on each tick of interval. With immediate set the first run
// happens right away instead of after one interval.
func (r *Runner) Every(interval time.Duration, name string, immediate bool, fn Job) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		if immediate {
			r.run(name, fn)
		}
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				r.run(name, fn)
			}
		}
	}()
}

// Wait blocks until every job loop has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(name string, fn Job) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic in job %s: %v", name, rec)
			}
		}()
		err = fn(r.ctx)
	}()

	r.metrics.JobRun(name, time.Since(start), err)
	if err != nil {
		r.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		observability.CaptureErr(err)
		return
	}
	r.logger.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}
