// Package memory provides an in-memory domain.Repository for tests and local development.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"example.com/ibblog/internal/domain"
)

type idempotencyKey struct {
	userID string
	key    string
}

// Repository stores workouts, groups and memberships in maps guarded by a RWMutex.
type Repository struct {
	mu          sync.RWMutex
	workouts    map[string]domain.Workout
	idempotency map[idempotencyKey]string
	groups      map[string]domain.Group
	members     map[string][]domain.Member
	profiles    map[string]domain.Member
	reactions   []domain.Reaction
	comments    []domain.Comment
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		workouts:    make(map[string]domain.Workout),
		idempotency: make(map[idempotencyKey]string),
		groups:      make(map[string]domain.Group),
		members:     make(map[string][]domain.Member),
		profiles:    make(map[string]domain.Member),
	}
}

// SetProfile registers the username and display name joined onto members of userID.
func (r *Repository) SetProfile(userID, username, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[userID] = domain.Member{UserID: userID, Username: username, DisplayName: displayName}
}

// PutWorkout stores a workout as-is, bypassing the service. Intended for seeding history.
func (r *Repository) PutWorkout(workout domain.Workout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workouts[workout.ID] = cloneWorkout(workout)
}

// FindByIdempotency implements domain.Repository.
func (r *Repository) FindByIdempotency(_ context.Context, userID, key string) (*domain.Workout, error) {
	if key == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idempotency[idempotencyKey{userID: userID, key: key}]
	if !ok {
		return nil, nil
	}
	w := cloneWorkout(r.workouts[id])
	return &w, nil
}

// CreateWorkout implements domain.Repository.
func (r *Repository) CreateWorkout(_ context.Context, workout domain.Workout, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workouts[workout.ID] = cloneWorkout(workout)
	if key != "" {
		r.idempotency[idempotencyKey{userID: workout.UserID, key: key}] = workout.ID
	}
	return nil
}

// UpdateWorkout implements domain.Repository.
func (r *Repository) UpdateWorkout(_ context.Context, workout domain.Workout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workouts[workout.ID]; !ok {
		return domain.ErrWorkoutNotFound
	}
	r.workouts[workout.ID] = cloneWorkout(workout)
	return nil
}

// GetWorkout implements domain.Repository.
func (r *Repository) GetWorkout(_ context.Context, workoutID string) (*domain.Workout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workouts[workoutID]
	if !ok {
		return nil, nil
	}
	w = cloneWorkout(w)
	return &w, nil
}

// ListWorkoutsByUser implements domain.Repository, ordering by creation time descending.
func (r *Repository) ListWorkoutsByUser(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.userWorkouts(userID)
	results := make([]domain.Workout, 0, limit)
	for _, w := range all {
		if cursor != nil && !olderThanCursor(w.CreatedAt, w.ID, cursor) {
			continue
		}
		results = append(results, w)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListWorkoutHistory implements domain.Repository.
func (r *Repository) ListWorkoutHistory(_ context.Context, userID string) ([]domain.Workout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userWorkouts(userID), nil
}

// CreateGroup implements domain.Repository.
func (r *Repository) CreateGroup(_ context.Context, group domain.Group, creator domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.groups[group.ID] = group
	r.members[group.ID] = []domain.Member{creator}
	return nil
}

// GetGroup implements domain.Repository.
func (r *Repository) GetGroup(_ context.Context, groupID string) (*domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[groupID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// GetGroupByInviteCode implements domain.Repository.
func (r *Repository) GetGroupByInviteCode(_ context.Context, inviteCode string) (*domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.groups {
		if g.InviteCode == inviteCode {
			return &g, nil
		}
	}
	return nil, nil
}

// AddMember implements domain.Repository.
func (r *Repository) AddMember(_ context.Context, groupID string, member domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members[groupID] {
		if m.UserID == member.UserID {
			return domain.ErrAlreadyMember
		}
	}
	r.members[groupID] = append(r.members[groupID], member)
	return nil
}

// ListGroupsByUser implements domain.Repository, most recently joined first.
func (r *Repository) ListGroupsByUser(_ context.Context, userID string) ([]domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type joined struct {
		group domain.Group
		at    time.Time
	}
	var rows []joined
	for groupID, members := range r.members {
		for _, m := range members {
			if m.UserID == userID {
				rows = append(rows, joined{group: r.groups[groupID], at: m.JoinedAt})
			}
		}
	}
	slices.SortFunc(rows, func(a, b joined) int {
		if c := b.at.Compare(a.at); c != 0 {
			return c
		}
		return strings.Compare(a.group.ID, b.group.ID)
	})

	out := make([]domain.Group, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.group)
	}
	return out, nil
}

// GetMember implements domain.Repository.
func (r *Repository) GetMember(_ context.Context, groupID, userID string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members[groupID] {
		if m.UserID == userID {
			m = r.withProfile(m)
			return &m, nil
		}
	}
	return nil, nil
}

// ListMembers implements domain.Repository.
func (r *Repository) ListMembers(_ context.Context, groupID string) ([]domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Member, 0, len(r.members[groupID]))
	for _, m := range r.members[groupID] {
		out = append(out, r.withProfile(m))
	}
	return out, nil
}

// ListQualifiedUserIDs implements domain.Repository.
func (r *Repository) ListQualifiedUserIDs(_ context.Context, groupID, weekKey string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, w := range r.sortedWorkouts() {
		for _, link := range w.Links {
			if link.GroupID == groupID && link.WeekKey == weekKey && link.IsQualified {
				out = append(out, w.UserID)
			}
		}
	}
	return out, nil
}

// ListLinkActivity implements domain.Repository, oldest link first.
func (r *Repository) ListLinkActivity(_ context.Context, groupID string) ([]domain.LinkActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.LinkActivity
	workouts := r.sortedWorkouts()
	slices.Reverse(workouts)
	for _, w := range workouts {
		for _, link := range w.Links {
			if link.GroupID != groupID {
				continue
			}
			out = append(out, domain.LinkActivity{
				UserID:          w.UserID,
				DurationMinutes: w.DurationMinutes,
				IsQualified:     link.IsQualified,
				WeekKey:         link.WeekKey,
				CreatedAt:       link.CreatedAt,
			})
		}
	}
	return out, nil
}

func (r *Repository) withProfile(m domain.Member) domain.Member {
	if p, ok := r.profiles[m.UserID]; ok {
		m.Username = p.Username
		m.DisplayName = p.DisplayName
	}
	return m
}

// sortedWorkouts returns every workout newest first, ties broken by ID descending.
func (r *Repository) sortedWorkouts() []domain.Workout {
	out := make([]domain.Workout, 0, len(r.workouts))
	for _, w := range r.workouts {
		out = append(out, cloneWorkout(w))
	}
	slices.SortFunc(out, func(a, b domain.Workout) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return 1
		case a.ID > b.ID:
			return -1
		}
		return 0
	})
	return out
}

func (r *Repository) userWorkouts(userID string) []domain.Workout {
	var out []domain.Workout
	for _, w := range r.sortedWorkouts() {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out
}

// olderThanCursor reports whether (createdAt, id) sorts after c in newest-first order.
func olderThanCursor(createdAt time.Time, id string, c *domain.Cursor) bool {
	if createdAt.Equal(c.CreatedAt) {
		return id < c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

func cloneWorkout(w domain.Workout) domain.Workout {
	w.Links = slices.Clone(w.Links)
	return w
}
