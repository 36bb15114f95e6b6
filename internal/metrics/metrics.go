// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xenwatch"

// Collector groups every counter the service records. A nil *Collector is
// valid and records nothing.
type Collector struct {
	NotificationsCreated *prometheus.CounterVec
	NotificationsSkipped *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	FanoutEvents         *prometheus.CounterVec
	IdentityRepairs      *prometheus.CounterVec
	DetachedTasks        *prometheus.CounterVec
	JobRuns              *prometheus.CounterVec
	JobErrors            *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_created_total",
			Help: "Notifications stored, by kind",
		}, []string{"kind"}),
		NotificationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_skipped_total",
			Help: "Notifications skipped because an equivalent one exists, by kind",
		}, []string{"kind"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_failed_total",
			Help: "Notifications that could not be stored, by kind",
		}, []string{"kind"}),
		FanoutEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fanout_events_total",
			Help: "Domain events processed by the fan-out engine",
		}, []string{"event"}),
		IdentityRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "identity_repairs_total",
			Help: "Linked profile repair attempts, by role and outcome",
		}, []string{"role", "outcome"}),
		DetachedTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "detached_tasks_total",
			Help: "Background tasks finished, by name and result",
		}, []string{"task", "result"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "job_runs_total",
			Help: "Periodic job runs",
		}, []string{"job"}),
		JobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "job_errors_total",
			Help: "Periodic job errors",
		}, []string{"job"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_duration_seconds",
			Help:    "Periodic job duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	reg.MustRegister(
		c.NotificationsCreated,
		c.NotificationsSkipped,
		c.NotificationsFailed,
		c.FanoutEvents,
		c.IdentityRepairs,
		c.DetachedTasks,
		c.JobRuns,
		c.JobErrors,
		c.JobDuration,
	)
	return c
}

func Handler() http.Handler { return promhttp.Handler() }

func (c *Collector) NotificationCreated(kind string) {
	if c == nil {
		return
	}
	c.NotificationsCreated.WithLabelValues(kind).Inc()
}

func (c *Collector) NotificationSkipped(kind string) {
	if c == nil {
		return
	}
	c.NotificationsSkipped.WithLabelValues(kind).Inc()
}

func (c *Collector) NotificationFailed(kind string) {
	if c == nil {
		return
	}
	c.NotificationsFailed.WithLabelValues(kind).Inc()
}

func (c *Collector) FanoutEvent(event string) {
	if c == nil {
		return
	}
	c.FanoutEvents.WithLabelValues(event).Inc()
}

func (c *Collector) IdentityRepair(role, outcome string) {
	if c == nil {
		return
	}
	c.IdentityRepairs.WithLabelValues(role, outcome).Inc()
}

func (c *Collector) DetachedTask(task, result string) {
	if c == nil {
		return
	}
	c.DetachedTasks.WithLabelValues(task, result).Inc()
}

func (c *Collector) JobRun(job string, d time.Duration, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.JobErrors.WithLabelValues(job).Inc()
	}
	c.JobRuns.WithLabelValues(job).Inc()
	c.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}
