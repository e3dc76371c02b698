// Package metrics exposes Prometheus instrumentation for the dispatch and
// stalled-recovery paths. Unlike messdev072's pkg/metrics (package-level
// promauto globals, registered once against the default registry), this
// package builds its counters against a caller-supplied prometheus.Registerer
// so that multiple queues — or multiple tests in the same binary — don't
// collide by re-registering the same metric name.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds per-queue instrumentation.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec
	jobLatency   *prometheus.HistogramVec
	stalledTotal prometheus.Counter
	queue        string
}

// New registers and returns a Metrics bound to the given queue name. Pass
// prometheus.NewRegistry() (or nil to use a fresh, unexported registry) in
// tests to avoid touching the global default registry.
func New(reg prometheus.Registerer, queue string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		queue: queue,
		jobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bullq_jobs_total",
			Help: "Total number of jobs settled, by outcome.",
		}, []string{"queue", "outcome"}),
		jobLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bullq_job_latency_seconds",
			Help:    "Time from job creation to settlement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
		stalledTotal: f.NewCounter(prometheus.CounterOpts{
			Name:        "bullq_stalled_jobs_total",
			Help:        "Total number of jobs recovered from a dead consumer.",
			ConstLabels: prometheus.Labels{"queue": queue},
		}),
	}
}

// ObserveCompleted records a successful settlement and its latency from
// createdAt.
func (m *Metrics) ObserveCompleted(createdAt time.Time) {
	m.jobsTotal.WithLabelValues(m.queue, "completed").Inc()
	m.jobLatency.WithLabelValues(m.queue).Observe(time.Since(createdAt).Seconds())
}

// ObserveFailed records a failed settlement and its latency from createdAt.
func (m *Metrics) ObserveFailed(createdAt time.Time) {
	m.jobsTotal.WithLabelValues(m.queue, "failed").Inc()
	m.jobLatency.WithLabelValues(m.queue).Observe(time.Since(createdAt).Seconds())
}

// ObserveDelayed records a job being moved to the delayed set.
func (m *Metrics) ObserveDelayed() {
	m.jobsTotal.WithLabelValues(m.queue, "delayed").Inc()
}

// ObserveStalled records one stalled-job recovery.
func (m *Metrics) ObserveStalled() {
	m.stalledTotal.Inc()
}
