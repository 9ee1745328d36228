package consumer

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ibblog/internal/events"
)

// PersistenceHandler appends consumed events to workout_event_log for auditing.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event. Redelivered records are ignored by topic, partition and offset.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO workout_event_log (event_type, user_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.UserID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	if err != nil {
		return err
	}
	recordAuditedMinutes(msg.EventType, workoutMinutes(msg))
	return nil
}

// workoutMinutes reads duration_minutes from workout payloads; other events report zero.
func workoutMinutes(msg Message) int {
	switch msg.EventType {
	case events.TypeWorkoutLogged, events.TypeWorkoutUpdated:
	default:
		return 0
	}
	var payload events.WorkoutLogged
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return 0
	}
	return payload.DurationMinutes
}
