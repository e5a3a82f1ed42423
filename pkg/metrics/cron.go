package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "castwell"

// CronJobMetrics records scheduled job outcomes.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on reg. A nil registerer yields no-op metrics.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_duration_seconds",
		Help:      "Duration of cron jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_runs_total",
		Help:      "Cron job executions by outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs)
	return &CronJobMetrics{duration: duration, runs: runs}
}

// Observe records one run of job.
func (c *CronJobMetrics) Observe(job string, duration time.Duration, err error) {
	if c == nil || c.duration == nil {
		return
	}
	job = labelOrUnknown(job)
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.runs.WithLabelValues(job, outcome).Inc()
}

func labelOrUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
