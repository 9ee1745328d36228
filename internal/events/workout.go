// Package events defines event payloads shared by the outbox and its consumers.
package events

import "time"

// Event types published through the outbox.
const (
	TypeWorkoutLogged  = "workout.logged"
	TypeWorkoutUpdated = "workout.updated"
)

// WorkoutGroupLink is one group verdict carried by a workout event.
type WorkoutGroupLink struct {
	GroupID     string `json:"group_id"`
	WeekKey     string `json:"week_key"`
	IsQualified bool   `json:"is_qualified"`
}

// WorkoutLogged is emitted when a workout is created or edited; UpdatedAt equals
// CreatedAt for newly logged workouts.
type WorkoutLogged struct {
	WorkoutID       string             `json:"workout_id"`
	UserID          string             `json:"user_id"`
	DurationMinutes int                `json:"duration_minutes"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Groups          []WorkoutGroupLink `json:"groups"`
}
