package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "playlist_jobs_submitted_total", Help: "Total jobs accepted for generation"})
	JobsCompleted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "playlist_jobs_completed_total", Help: "Jobs that finished successfully"})
	JobsFailed        = prometheus.NewCounter(prometheus.CounterOpts{Name: "playlist_jobs_failed_total", Help: "Jobs that ended in a failure state"})
	JobsCancelled     = prometheus.NewCounter(prometheus.CounterOpts{Name: "playlist_jobs_cancelled_total", Help: "Jobs cancelled by callers"})
	RateLimitRejects  = prometheus.NewCounter(prometheus.CounterOpts{Name: "playlist_rate_limit_rejects_total", Help: "Requests rejected by the rate limiter"})
	QueueDepthGauge   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "playlist_queue_depth", Help: "Jobs waiting for a worker"})
	InFlightGauge     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "playlist_jobs_inflight", Help: "Jobs currently executing"})
	StreamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{Name: "playlist_stream_subscribers", Help: "Open progress stream subscriptions"})
	StageDuration     = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playlist_stage_duration_seconds",
		Help:    "Wall time spent per pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			JobsCompleted,
			JobsFailed,
			JobsCancelled,
			RateLimitRejects,
			QueueDepthGauge,
			InFlightGauge,
			StreamSubscribers,
			StageDuration,
		)
	})
	return promhttp.Handler()
}
