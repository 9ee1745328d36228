package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ibblog",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Workout events published to Kafka, labeled by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ibblog",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Workout events that failed to publish and were routed to the DLQ, labeled by event type.",
	}, []string{"event_type"})

	pendingAgeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ibblog",
		Subsystem: "outbox",
		Name:      "oldest_claimed_event_age_seconds",
		Help:      "Age of the oldest workout event in the most recently claimed batch.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ibblog",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ibblog",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Workout events written to the dead-letter table, labeled by topic and event type.",
	}, []string{"topic", "event_type"})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, pendingAgeGauge, batchDuration, dlqCounter)
}

func recordDelivered(messages []Message) {
	for eventType, n := range countByEventType(messages) {
		deliveredCounter.WithLabelValues(eventType).Add(float64(n))
	}
}

func recordFailed(messages []Message) {
	for eventType, n := range countByEventType(messages) {
		failedCounter.WithLabelValues(eventType).Add(float64(n))
	}
}

func countByEventType(messages []Message) map[string]int {
	counts := make(map[string]int)
	for _, msg := range messages {
		counts[msg.EventType]++
	}
	return counts
}
