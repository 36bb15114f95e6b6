package detach

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/metrics"
)

func TestRunner_OutlivesCallerContext(t *testing.T) {
	r := NewRunner(zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var ctxErr atomic.Value

	r.Go(ctx, "outlive", func(taskCtx context.Context) error {
		close(started)
		<-release
		if err := taskCtx.Err(); err != nil {
			ctxErr.Store(err)
		}
		return nil
	})

	<-started
	cancel()
	close(release)
	r.Wait()

	if v := ctxErr.Load(); v != nil {
		t.Errorf("expected task context to survive caller cancellation, got %v", v)
	}
}

func TestRunner_RecordsOutcomes(t *testing.T) {
	m := metrics.NewCollector(prometheus.NewRegistry())
	r := NewRunner(zap.NewNop(), m)
	ctx := context.Background()

	r.Go(ctx, "job", func(context.Context) error { return nil })
	r.Go(ctx, "job", func(context.Context) error { return errors.New("store down") })
	r.Go(ctx, "job", func(context.Context) error { panic("boom") })
	r.Wait()

	for result, want := range map[string]float64{"ok": 1, "error": 1, "panic": 1} {
		if got := testutil.ToFloat64(m.DetachedTasks.WithLabelValues("job", result)); got != want {
			t.Errorf("expected %v %s outcomes, got %v", want, result, got)
		}
	}
}

func TestRunner_ShutdownTimesOut(t *testing.T) {
	r := NewRunner(zap.NewNop(), nil)
	release := make(chan struct{})
	defer close(release)

	r.Go(context.Background(), "slow", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
