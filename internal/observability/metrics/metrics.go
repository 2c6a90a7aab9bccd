// Package metrics holds the Prometheus collectors for the rating pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Job result labels.
const (
	ResultRated   = "rated"
	ResultDropped = "dropped"
	ResultRetried = "retried"
)

// RatingMetrics instruments the rating worker queue and service.
type RatingMetrics struct {
	QueueBacklog   prometheus.Gauge
	JobsTotal      *prometheus.CounterVec
	RatingDuration prometheus.Histogram
	EventsTotal    prometheus.Counter
}

// NewRatingMetrics builds and registers the pipeline collectors.
func NewRatingMetrics(reg prometheus.Registerer) *RatingMetrics {
	m := &RatingMetrics{
		QueueBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rating_queue_backlog",
			Help: "Number of rating jobs waiting in the queue.",
		}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rating_jobs_total",
			Help: "Rating jobs processed, by result.",
		}, []string{"result"}),
		RatingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rating_job_duration_seconds",
			Help:    "Wall time spent rating one job.",
			Buckets: prometheus.DefBuckets,
		}),
		EventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rating_change_events_total",
			Help: "Rating-change events published.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.QueueBacklog, m.JobsTotal, m.RatingDuration, m.EventsTotal)
	}
	return m
}

// NewNopRatingMetrics builds unregistered collectors for tests.
func NewNopRatingMetrics() *RatingMetrics {
	return NewRatingMetrics(nil)
}
