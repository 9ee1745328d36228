package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ibblog/internal/events"
)

type recordingInvalidator struct {
	users []string
}

func (r *recordingInvalidator) InvalidateStats(userID string) {
	r.users = append(r.users, userID)
}

func TestStatsInvalidationHandler(t *testing.T) {
	payload, err := json.Marshal(events.WorkoutLogged{WorkoutID: "w-1", UserID: "user-1", DurationMinutes: 30})
	require.NoError(t, err)

	tests := []struct {
		name    string
		msg     Message
		want    []string
		wantErr bool
	}{
		{
			name: "logged",
			msg:  Message{EventType: events.TypeWorkoutLogged, Payload: payload},
			want: []string{"user-1"},
		},
		{
			name: "updated falls back to header user",
			msg:  Message{EventType: events.TypeWorkoutUpdated, UserID: "user-2", Payload: json.RawMessage(`{"workout_id":"w-2"}`)},
			want: []string{"user-2"},
		},
		{
			name: "other event types are ignored",
			msg:  Message{EventType: "group.created", Payload: json.RawMessage(`not json`)},
		},
		{
			name:    "bad payload",
			msg:     Message{EventType: events.TypeWorkoutLogged, Payload: json.RawMessage(`{`)},
			wantErr: true,
		},
		{
			name:    "missing user",
			msg:     Message{EventType: events.TypeWorkoutLogged, Payload: json.RawMessage(`{}`)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &recordingInvalidator{}
			err := NewStatsInvalidationHandler(inv).Handle(context.Background(), tt.msg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, inv.users)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, inv.users)
		})
	}
}

func TestStatsInvalidationHandlerCountsByEventType(t *testing.T) {
	logged := statsInvalidationCounter.WithLabelValues(events.TypeWorkoutLogged)
	updated := statsInvalidationCounter.WithLabelValues(events.TypeWorkoutUpdated)
	beforeLogged := testutil.ToFloat64(logged)
	beforeUpdated := testutil.ToFloat64(updated)

	handler := NewStatsInvalidationHandler(&recordingInvalidator{})
	ctx := context.Background()
	require.NoError(t, handler.Handle(ctx, Message{EventType: events.TypeWorkoutLogged, UserID: "user-1", Payload: json.RawMessage(`{}`)}))
	require.NoError(t, handler.Handle(ctx, Message{EventType: events.TypeWorkoutLogged, UserID: "user-1", Payload: json.RawMessage(`{}`)}))
	require.NoError(t, handler.Handle(ctx, Message{EventType: "group.created"}))
	require.Error(t, handler.Handle(ctx, Message{EventType: events.TypeWorkoutUpdated, Payload: json.RawMessage(`{}`)}))

	assert.InDelta(t, beforeLogged+2, testutil.ToFloat64(logged), 0.0001)
	assert.InDelta(t, beforeUpdated, testutil.ToFloat64(updated), 0.0001)
}
