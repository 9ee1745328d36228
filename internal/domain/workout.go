package domain

import (
	"time"
)

// UnknownUsername is shown for members whose profile could not be joined.
const UnknownUsername = "Unknown"

// Role is a member's permission level inside a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Workout is one logged workout together with the groups it was posted to.
type Workout struct {
	ID              string
	UserID          string
	Title           string
	Description     string
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Links           []GroupWorkout
}

// GroupWorkout links a workout to a group. WeekKey is fixed when the link is
// created and IsQualified reflects the group's rule at that time.
type GroupWorkout struct {
	ID          string
	WorkoutID   string
	GroupID     string
	WeekKey     string
	IsQualified bool
	CreatedAt   time.Time
}

// Group carries the weekly quota policy of an accountability group.
type Group struct {
	ID                         string
	Name                       string
	InviteCode                 string
	MinWorkoutsPerWeek         int
	MinWorkoutMinutesToQualify int
	CreatedBy                  string
	CreatedAt                  time.Time
}

// Rule extracts the qualification policy of the group.
func (g Group) Rule() GroupRule {
	return GroupRule{
		GroupID:                    g.ID,
		MinWorkoutsPerWeek:         g.MinWorkoutsPerWeek,
		MinWorkoutMinutesToQualify: g.MinWorkoutMinutesToQualify,
	}
}

// GroupRule is the per-group qualification policy.
type GroupRule struct {
	GroupID                    string
	MinWorkoutsPerWeek         int
	MinWorkoutMinutesToQualify int
}

// Qualifies reports whether a workout of the given duration counts for this group.
func (r GroupRule) Qualifies(durationMinutes int) bool {
	return durationMinutes >= r.MinWorkoutMinutesToQualify
}

// Member is a user inside a group, joined with whatever profile data exists.
type Member struct {
	UserID      string
	Username    string
	DisplayName string
	Role        Role
	JoinedAt    time.Time
}

// Label returns the username, falling back to UnknownUsername when the profile is missing.
func (m Member) Label() string {
	if m.Username == "" {
		return UnknownUsername
	}
	return m.Username
}

// Cursor models the pagination token for workout listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
