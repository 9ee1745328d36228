package consumer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/ibblog/internal/events"
)

func TestRecordProcessedUpdatesWatermark(t *testing.T) {
	msg := Message{Topic: "metrics_test", EventType: "workout.logged", Timestamp: time.Unix(1709726400, 0)}
	before := testutil.ToFloat64(processedCounter.WithLabelValues(msg.Topic, msg.EventType))

	recordProcessed(msg)

	require.Equal(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues(msg.Topic, msg.EventType)))
	require.Equal(t, float64(1709726400), testutil.ToFloat64(lastMessageGauge.WithLabelValues(msg.Topic)))
}

func TestRecordProcessedSkipsZeroTimestamp(t *testing.T) {
	msg := Message{Topic: "metrics_test_zero", EventType: "workout.updated"}

	recordProcessed(msg)

	require.Zero(t, testutil.ToFloat64(lastMessageGauge.WithLabelValues(msg.Topic)))
}

func TestWorkoutMinutes(t *testing.T) {
	payload, err := json.Marshal(events.WorkoutLogged{WorkoutID: "w-1", UserID: "user-1", DurationMinutes: 45})
	require.NoError(t, err)

	require.Equal(t, 45, workoutMinutes(Message{EventType: events.TypeWorkoutLogged, Payload: payload}))
	require.Equal(t, 45, workoutMinutes(Message{EventType: events.TypeWorkoutUpdated, Payload: payload}))
	require.Zero(t, workoutMinutes(Message{EventType: "group.created", Payload: payload}))
	require.Zero(t, workoutMinutes(Message{EventType: events.TypeWorkoutLogged, Payload: json.RawMessage(`{`)}))
}

func TestRecordAuditedMinutesSkipsNonPositive(t *testing.T) {
	counter := auditedMinutesCounter.WithLabelValues(events.TypeWorkoutUpdated)
	before := testutil.ToFloat64(counter)

	recordAuditedMinutes(events.TypeWorkoutUpdated, 0)
	recordAuditedMinutes(events.TypeWorkoutUpdated, 20)

	require.InDelta(t, before+20, testutil.ToFloat64(counter), 0.0001)
}
