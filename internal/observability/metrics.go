// Package observability holds Prometheus collectors shared across packages.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ibblog",
		Subsystem: "persistence",
		Name:      "last_workout_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout persisted to Postgres.",
	})
	workoutLinksCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ibblog",
		Subsystem: "persistence",
		Name:      "group_workouts_created_total",
		Help:      "Number of workout-to-group links created, labeled by qualification outcome.",
	}, []string{"qualified"})
	computationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ibblog",
		Subsystem: "analytics",
		Name:      "computation_duration_seconds",
		Help:      "Time spent aggregating compliance, leaderboard and stats views.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"view"})
	statsMemoCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ibblog",
		Subsystem: "analytics",
		Name:      "stats_memo_lookups_total",
		Help:      "Memoized user stats lookups, labeled by hit or miss.",
	}, []string{"result"})
	httpRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ibblog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by method and status code.",
	}, []string{"method", "status"})
	httpRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ibblog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	})
	httpPanicCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ibblog",
		Subsystem: "http",
		Name:      "handler_panics_total",
		Help:      "Panics recovered while serving HTTP requests.",
	})
)

func init() {
	prometheus.MustRegister(
		workoutPersistGauge,
		workoutLinksCounter,
		computationDuration,
		statsMemoCounter,
		httpRequestCounter,
		httpRequestDuration,
		httpPanicCounter,
	)
}

// RecordWorkoutPersisted updates the persistence watermark gauge.
func RecordWorkoutPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutPersistGauge.Set(float64(ts.Unix()))
}

// RecordLinkCreated counts a new group link.
func RecordLinkCreated(qualified bool) {
	label := "false"
	if qualified {
		label = "true"
	}
	workoutLinksCounter.WithLabelValues(label).Inc()
}

// ObserveComputation records the time since start for the named view.
func ObserveComputation(view string, start time.Time) {
	computationDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// RecordStatsMemoLookup counts a memo hit or miss.
func RecordStatsMemoLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	statsMemoCounter.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts a served request and observes its latency.
func RecordHTTPRequest(method string, status int, elapsed time.Duration) {
	httpRequestCounter.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.Observe(elapsed.Seconds())
}

// RecordHTTPPanic counts a recovered handler panic.
func RecordHTTPPanic() {
	httpPanicCounter.Inc()
}
