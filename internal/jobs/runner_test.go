package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xenwatch/identity-notify-service/internal/metrics"
)

func TestRunner_Every(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := metrics.NewCollector(prometheus.NewRegistry())
	r := New(ctx, nil, m)

	var calls atomic.Int32
	r.Every(5*time.Millisecond, "expiry_scan", true, func(ctx context.Context) error {
		if calls.Add(1) == 2 {
			return errors.New("scan failed")
		}
		return nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	r.Wait()

	n := calls.Load()
	if n < 3 {
		t.Fatalf("expected at least 3 runs, got %d", n)
	}
	if got := testutil.ToFloat64(m.JobRuns.WithLabelValues("expiry_scan")); got != float64(n) {
		t.Errorf("expected %d recorded runs, got %v", n, got)
	}
	if got := testutil.ToFloat64(m.JobErrors.WithLabelValues("expiry_scan")); got != 1 {
		t.Errorf("expected 1 recorded error, got %v", got)
	}
}

func TestRunner_RecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil, nil)

	var calls atomic.Int32
	r.Every(time.Hour, "boom", true, func(ctx context.Context) error {
		calls.Add(1)
		panic("unexpected")
	})

	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	r.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected exactly one run, got %d", calls.Load())
	}
}
