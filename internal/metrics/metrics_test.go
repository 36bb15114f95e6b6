package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.NotificationCreated("submission_created")
	c.NotificationCreated("submission_created")
	c.NotificationSkipped("submission_created")
	c.NotificationFailed("form_created")
	c.IdentityRepair("student", "unrepairable")

	if got := testutil.ToFloat64(c.NotificationsCreated.WithLabelValues("submission_created")); got != 2 {
		t.Errorf("expected 2 created, got %v", got)
	}
	if got := testutil.ToFloat64(c.NotificationsSkipped.WithLabelValues("submission_created")); got != 1 {
		t.Errorf("expected 1 skipped, got %v", got)
	}
	if got := testutil.ToFloat64(c.NotificationsFailed.WithLabelValues("form_created")); got != 1 {
		t.Errorf("expected 1 failed, got %v", got)
	}
	if got := testutil.ToFloat64(c.IdentityRepairs.WithLabelValues("student", "unrepairable")); got != 1 {
		t.Errorf("expected 1 repair, got %v", got)
	}
}

func TestCollector_JobRun(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.JobRun("expiry_scan", time.Millisecond, nil)
	c.JobRun("expiry_scan", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(c.JobRuns.WithLabelValues("expiry_scan")); got != 2 {
		t.Errorf("expected 2 runs, got %v", got)
	}
	if got := testutil.ToFloat64(c.JobErrors.WithLabelValues("expiry_scan")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector

	c.NotificationCreated("x")
	c.NotificationSkipped("x")
	c.NotificationFailed("x")
	c.FanoutEvent("x")
	c.IdentityRepair("x", "y")
	c.DetachedTask("x", "ok")
	c.JobRun("x", time.Second, nil)
}
