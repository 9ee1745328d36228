package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"example.com/ibblog/internal/events"
)

// StatsInvalidator drops memoized statistics of a user.
type StatsInvalidator interface {
	InvalidateStats(userID string)
}

// StatsInvalidationHandler invalidates memoized stats whenever a workout event arrives,
// so that replicas which did not serve the write stop returning stale numbers.
type StatsInvalidationHandler struct {
	invalidator StatsInvalidator
}

// NewStatsInvalidationHandler constructs a StatsInvalidationHandler.
func NewStatsInvalidationHandler(invalidator StatsInvalidator) *StatsInvalidationHandler {
	return &StatsInvalidationHandler{invalidator: invalidator}
}

// Handle decodes the workout event and invalidates its owner's stats.
func (h *StatsInvalidationHandler) Handle(_ context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeWorkoutLogged, events.TypeWorkoutUpdated:
	default:
		log.Debugf("ignoring event type %s", msg.EventType)
		return nil
	}

	var payload events.WorkoutLogged
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	userID := payload.UserID
	if userID == "" {
		userID = msg.UserID
	}
	if userID == "" {
		return fmt.Errorf("%s event without user id", msg.EventType)
	}

	h.invalidator.InvalidateStats(userID)
	recordStatsInvalidation(msg.EventType)
	return nil
}
