// Package domain defines the workout accountability model: qualification,
// weekly compliance, leaderboards and streak statistics.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"example.com/ibblog/internal/observability"
	"example.com/ibblog/internal/weekkey"
)

var (
	// ErrValidation wraps input problems detected before touching storage.
	ErrValidation = errors.New("validation failed")
	// ErrWorkoutNotFound is returned when a workout cannot be located.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrGroupNotFound is returned when a group cannot be located.
	ErrGroupNotFound = errors.New("group not found")
	// ErrNotGroupMember is returned when the acting user does not belong to the group.
	ErrNotGroupMember = errors.New("user is not a member of the group")
	// ErrInvalidInviteCode is returned when no group matches an invite code.
	ErrInvalidInviteCode = errors.New("invalid invite code")
	// ErrAlreadyMember is returned when joining a group twice.
	ErrAlreadyMember = errors.New("user is already a member of the group")
	// ErrNotWorkoutOwner is returned when someone other than the owner edits a workout.
	ErrNotWorkoutOwner = errors.New("workout belongs to another user")
	// ErrEditWindowClosed is returned when a workout is edited after the edit window.
	ErrEditWindowClosed = errors.New("workout can no longer be edited")
	// ErrCorruptHistory is returned when stored workout data cannot be interpreted.
	ErrCorruptHistory = errors.New("stored workout history is corrupt")
)

const (
	defaultMinWorkoutsPerWeek         = 3
	defaultMinWorkoutMinutesToQualify = 30
)

// Repository captures persistence operations. Lookups return (nil, nil) when
// the row does not exist.
type Repository interface {
	FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*Workout, error)
	CreateWorkout(ctx context.Context, workout Workout, idempotencyKey string) error
	UpdateWorkout(ctx context.Context, workout Workout) error
	GetWorkout(ctx context.Context, workoutID string) (*Workout, error)
	ListWorkoutsByUser(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error)
	ListWorkoutHistory(ctx context.Context, userID string) ([]Workout, error)

	CreateGroup(ctx context.Context, group Group, creator Member) error
	GetGroup(ctx context.Context, groupID string) (*Group, error)
	GetGroupByInviteCode(ctx context.Context, inviteCode string) (*Group, error)
	AddMember(ctx context.Context, groupID string, member Member) error
	GetMember(ctx context.Context, groupID, userID string) (*Member, error)
	ListMembers(ctx context.Context, groupID string) ([]Member, error)

	ListGroupsByUser(ctx context.Context, userID string) ([]Group, error)

	ListQualifiedUserIDs(ctx context.Context, groupID, weekKey string) ([]string, error)
	ListLinkActivity(ctx context.Context, groupID string) ([]LinkActivity, error)

	GetGroupWorkout(ctx context.Context, groupWorkoutID string) (*GroupWorkout, error)
	ListGroupFeed(ctx context.Context, groupID string, cursor *Cursor, limit int) ([]FeedEntry, *Cursor, error)

	// AddReaction stores the reaction unless the user already left that emoji,
	// returning the stored row and whether it was created.
	AddReaction(ctx context.Context, reaction Reaction) (*Reaction, bool, error)
	RemoveReaction(ctx context.Context, groupWorkoutID, userID, emoji string) (bool, error)
	ListReactions(ctx context.Context, groupWorkoutID string) ([]Reaction, error)
	AddComment(ctx context.Context, comment Comment) error
	GetComment(ctx context.Context, commentID string) (*Comment, error)
	ListComments(ctx context.Context, groupWorkoutID string) ([]Comment, error)
}

// StatsMemo memoizes computed stats per user. Entries are only valid for the
// calendar day they were computed on.
type StatsMemo interface {
	Get(userID string, asOf time.Time) (UserStats, bool)
	Set(userID string, asOf time.Time, stats UserStats)
	Invalidate(userID string)
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the source of "now".
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLocation sets the location whose calendar defines days, months and weeks.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithEditWindow limits how long after creation a workout may be edited. Zero disables the limit.
func WithEditWindow(window time.Duration) Option {
	return func(s *Service) {
		s.editWindow = window
	}
}

// WithStatsMemo enables memoization of user stats.
func WithStatsMemo(memo StatsMemo) Option {
	return func(s *Service) {
		s.memo = memo
	}
}

// Service orchestrates workout, group and analytics workflows.
type Service struct {
	repo       Repository
	clock      func() time.Time
	location   *time.Location
	editWindow time.Duration
	memo       StatsMemo

	// statsGen holds a *atomic.Uint64 per user, bumped on every invalidation.
	statsGen sync.Map
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		clock:    time.Now,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock().In(s.location)
}

// LogWorkoutInput captures the payload from the API layer.
type LogWorkoutInput struct {
	UserID          string
	GroupIDs        []string
	Title           string
	Description     string
	DurationMinutes int
	IdempotencyKey  string
}

func (in LogWorkoutInput) validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be > 0", ErrValidation)
	}
	if len(dedupe(in.GroupIDs)) == 0 {
		return fmt.Errorf("%w: at least one group is required", ErrValidation)
	}
	return nil
}

// LogWorkout records a workout and posts it to every requested group. Each
// link gets its own qualification verdict and the week key of the creation
// instant. The boolean result reports an idempotent replay.
func (s *Service) LogWorkout(ctx context.Context, input LogWorkoutInput) (*Workout, bool, error) {
	if err := input.validate(); err != nil {
		return nil, false, err
	}

	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotency(ctx, input.UserID, input.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	now := s.now()
	weekKey := weekkey.Of(now).String()
	workout := Workout{
		ID:              uuid.NewString(),
		UserID:          input.UserID,
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		DurationMinutes: input.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, groupID := range dedupe(input.GroupIDs) {
		group, err := s.memberGroup(ctx, groupID, input.UserID)
		if err != nil {
			return nil, false, err
		}
		workout.Links = append(workout.Links, GroupWorkout{
			ID:          uuid.NewString(),
			WorkoutID:   workout.ID,
			GroupID:     group.ID,
			WeekKey:     weekKey,
			IsQualified: group.Rule().Qualifies(workout.DurationMinutes),
			CreatedAt:   now,
		})
	}

	if err := s.repo.CreateWorkout(ctx, workout, input.IdempotencyKey); err != nil {
		return nil, false, err
	}
	s.invalidateStats(workout.UserID)
	return &workout, false, nil
}

// UpdateWorkoutInput carries the fields an owner may change. Nil means unchanged.
type UpdateWorkoutInput struct {
	WorkoutID       string
	UserID          string
	Title           *string
	Description     *string
	DurationMinutes *int
}

// UpdateWorkout applies owner edits. A duration change re-evaluates every
// link against its group's rule; week keys never change.
func (s *Service) UpdateWorkout(ctx context.Context, input UpdateWorkoutInput) (*Workout, error) {
	workout, err := s.GetWorkout(ctx, input.WorkoutID)
	if err != nil {
		return nil, err
	}
	if workout.UserID != input.UserID {
		return nil, ErrNotWorkoutOwner
	}

	now := s.now()
	if s.editWindow > 0 && now.Sub(workout.CreatedAt) > s.editWindow {
		return nil, ErrEditWindowClosed
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrValidation)
		}
		workout.Title = title
	}
	if input.Description != nil {
		workout.Description = strings.TrimSpace(*input.Description)
	}
	if input.DurationMinutes != nil && *input.DurationMinutes != workout.DurationMinutes {
		if *input.DurationMinutes <= 0 {
			return nil, fmt.Errorf("%w: duration_minutes must be > 0", ErrValidation)
		}
		workout.DurationMinutes = *input.DurationMinutes
		for i, link := range workout.Links {
			group, err := s.repo.GetGroup(ctx, link.GroupID)
			if err != nil {
				return nil, err
			}
			if group == nil {
				continue
			}
			workout.Links[i].IsQualified = group.Rule().Qualifies(workout.DurationMinutes)
		}
	}
	workout.UpdatedAt = now

	if err := s.repo.UpdateWorkout(ctx, *workout); err != nil {
		return nil, err
	}
	s.invalidateStats(workout.UserID)
	return workout, nil
}

// GetWorkout fetches by ID.
func (s *Service) GetWorkout(ctx context.Context, workoutID string) (*Workout, error) {
	workout, err := s.repo.GetWorkout(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if workout == nil {
		return nil, ErrWorkoutNotFound
	}
	return workout, nil
}

// ViewWorkout fetches a workout on behalf of viewerID, who must own it or
// belong to one of the groups it was posted to. Anyone else gets
// ErrWorkoutNotFound so that existence is not leaked.
func (s *Service) ViewWorkout(ctx context.Context, workoutID, viewerID string) (*Workout, error) {
	workout, err := s.GetWorkout(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if workout.UserID == viewerID {
		return workout, nil
	}
	for _, link := range workout.Links {
		member, err := s.repo.GetMember(ctx, link.GroupID, viewerID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return workout, nil
		}
	}
	return nil, ErrWorkoutNotFound
}

// ListWorkouts fetches a user's workouts with cursor pagination, newest first.
func (s *Service) ListWorkouts(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error) {
	return s.repo.ListWorkoutsByUser(ctx, userID, cursor, limit)
}

// CreateGroupInput captures a new group's settings. Nil quotas take defaults.
type CreateGroupInput struct {
	CreatorID                  string
	Name                       string
	MinWorkoutsPerWeek         *int
	MinWorkoutMinutesToQualify *int
}

// CreateGroup creates a group with a fresh invite code and makes the creator its admin.
func (s *Service) CreateGroup(ctx context.Context, input CreateGroupInput) (*Group, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	group := Group{
		ID:                         uuid.NewString(),
		Name:                       name,
		InviteCode:                 newInviteCode(),
		MinWorkoutsPerWeek:         defaultMinWorkoutsPerWeek,
		MinWorkoutMinutesToQualify: defaultMinWorkoutMinutesToQualify,
		CreatedBy:                  input.CreatorID,
		CreatedAt:                  s.now(),
	}
	if input.MinWorkoutsPerWeek != nil {
		group.MinWorkoutsPerWeek = *input.MinWorkoutsPerWeek
	}
	if input.MinWorkoutMinutesToQualify != nil {
		group.MinWorkoutMinutesToQualify = *input.MinWorkoutMinutesToQualify
	}
	if group.MinWorkoutsPerWeek < 0 || group.MinWorkoutMinutesToQualify < 0 {
		return nil, fmt.Errorf("%w: quotas must be >= 0", ErrValidation)
	}

	creator := Member{UserID: input.CreatorID, Role: RoleAdmin, JoinedAt: group.CreatedAt}
	if err := s.repo.CreateGroup(ctx, group, creator); err != nil {
		return nil, err
	}
	return &group, nil
}

// JoinGroup adds the user to the group owning inviteCode.
func (s *Service) JoinGroup(ctx context.Context, userID, inviteCode string) (*Group, error) {
	group, err := s.repo.GetGroupByInviteCode(ctx, strings.TrimSpace(inviteCode))
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrInvalidInviteCode
	}

	existing, err := s.repo.GetMember(ctx, group.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	member := Member{UserID: userID, Role: RoleMember, JoinedAt: s.now()}
	if err := s.repo.AddMember(ctx, group.ID, member); err != nil {
		return nil, err
	}
	return group, nil
}

// ListMembers returns the roster of a group the viewer belongs to.
func (s *Service) ListMembers(ctx context.Context, groupID, viewerID string) ([]Member, error) {
	if _, err := s.memberGroup(ctx, groupID, viewerID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, groupID)
}

// ComplianceReport is the weekly compliance view of one group.
type ComplianceReport struct {
	GroupID string
	WeekKey string
	Results []ComplianceResult
}

// WeeklyCompliance evaluates every member of the group for week, or for the
// current week when week is empty.
func (s *Service) WeeklyCompliance(ctx context.Context, groupID, viewerID, week string) (*ComplianceReport, error) {
	if week == "" {
		week = weekkey.Of(s.now()).String()
	} else if _, err := weekkey.Parse(week); err != nil {
		return nil, err
	}

	group, err := s.memberGroup(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	qualified, err := s.repo.ListQualifiedUserIDs(ctx, groupID, week)
	if err != nil {
		return nil, err
	}

	defer observability.ObserveComputation("compliance", time.Now())
	return &ComplianceReport{
		GroupID: groupID,
		WeekKey: week,
		Results: EvaluateCompliance(group.Rule(), members, qualified),
	}, nil
}

// LeaderboardReport is the ranked view of one group over a period.
type LeaderboardReport struct {
	GroupID string
	Period  Period
	Entries []LeaderboardEntry
}

// Leaderboard ranks the group's members over period.
func (s *Service) Leaderboard(ctx context.Context, groupID, viewerID string, period Period) (*LeaderboardReport, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	if period == "" {
		period = PeriodWeekly
	}

	if _, err := s.memberGroup(ctx, groupID, viewerID); err != nil {
		return nil, err
	}
	links, err := s.repo.ListLinkActivity(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	defer observability.ObserveComputation("leaderboard", time.Now())
	return &LeaderboardReport{
		GroupID: groupID,
		Period:  period,
		Entries: RankLeaderboard(period, links, members, s.now()),
	}, nil
}

// UserStats computes lifetime statistics for userID, consulting the memo first.
//
// A result is only memoized when no invalidation for userID happened while it
// was being computed, so a concurrent write never gets overwritten by stats
// computed from the history it replaced.
func (s *Service) UserStats(ctx context.Context, userID string) (UserStats, error) {
	now := s.now()
	var generation uint64
	if s.memo != nil {
		if stats, ok := s.memo.Get(userID, now); ok {
			return stats, nil
		}
		generation = s.statsGeneration(userID).Load()
	}

	history, err := s.repo.ListWorkoutHistory(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	for i := range history {
		history[i].CreatedAt = history[i].CreatedAt.In(s.location)
	}

	start := time.Now()
	stats, err := ComputeUserStats(history, now)
	observability.ObserveComputation("user_stats", start)
	if err != nil {
		return UserStats{}, fmt.Errorf("%w: user %s: %w", ErrCorruptHistory, userID, err)
	}

	if s.memo != nil {
		s.memoizeStats(userID, generation, now, stats)
	}
	return stats, nil
}

// memoizeStats stores stats computed at generation. An invalidation racing the
// Set bumps the generation first, so re-checking after the Set and dropping the
// entry on mismatch leaves no stale value behind.
func (s *Service) memoizeStats(userID string, generation uint64, now time.Time, stats UserStats) {
	gen := s.statsGeneration(userID)
	if gen.Load() != generation {
		return
	}
	s.memo.Set(userID, now, stats)
	if gen.Load() != generation {
		s.memo.Invalidate(userID)
	}
}

func (s *Service) statsGeneration(userID string) *atomic.Uint64 {
	gen, _ := s.statsGen.LoadOrStore(userID, new(atomic.Uint64))
	return gen.(*atomic.Uint64)
}

// InvalidateStats drops memoized stats for userID.
func (s *Service) InvalidateStats(userID string) {
	s.invalidateStats(userID)
}

func (s *Service) invalidateStats(userID string) {
	if s.memo == nil {
		return
	}
	s.statsGeneration(userID).Add(1)
	s.memo.Invalidate(userID)
}

// memberGroup loads the group and checks that userID belongs to it.
func (s *Service) memberGroup(ctx context.Context, groupID, userID string) (*Group, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	member, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotGroupMember
	}
	return group, nil
}

func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
