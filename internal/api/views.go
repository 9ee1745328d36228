package api

import (
	"errors"
	"strings"
	"time"

	"example.com/ibblog/internal/domain"
)

// LogWorkoutRequest is the payload for POST /v1/workouts.
type LogWorkoutRequest struct {
	GroupIDs        []string `json:"group_ids"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	DurationMinutes int      `json:"duration_minutes"`
}

// Validate ensures request correctness.
func (r LogWorkoutRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if r.DurationMinutes <= 0 {
		return errors.New("duration_minutes must be > 0")
	}
	if len(r.GroupIDs) == 0 {
		return errors.New("group_ids must name at least one group")
	}
	return nil
}

// UpdateWorkoutRequest is the payload for PATCH /v1/workouts/{id}. Omitted fields stay unchanged.
type UpdateWorkoutRequest struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

// CreateGroupRequest is the payload for POST /v1/groups.
type CreateGroupRequest struct {
	Name                       string `json:"name"`
	MinWorkoutsPerWeek         *int   `json:"min_workouts_per_week,omitempty"`
	MinWorkoutMinutesToQualify *int   `json:"min_workout_minutes_to_qualify,omitempty"`
}

// JoinGroupRequest is the payload for POST /v1/groups/join.
type JoinGroupRequest struct {
	InviteCode string `json:"invite_code"`
}

// ReactionRequest is the payload for POST /v1/group-workouts/{id}/reactions.
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

// AddCommentRequest is the payload for POST /v1/group-workouts/{id}/comments.
type AddCommentRequest struct {
	Body     string `json:"body"`
	ParentID string `json:"parent_id,omitempty"`
}

// GroupLinkView is one group a workout was posted to.
type GroupLinkView struct {
	GroupID     string `json:"group_id"`
	WeekKey     string `json:"week_key"`
	IsQualified bool   `json:"is_qualified"`
}

// WorkoutView exposes a workout and its group links.
type WorkoutView struct {
	WorkoutID       string          `json:"workout_id"`
	UserID          string          `json:"user_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Groups          []GroupLinkView `json:"groups"`
}

// LogWorkoutResponse describes the response body for POST /v1/workouts.
type LogWorkoutResponse struct {
	Workout WorkoutView `json:"workout"`
	Replay  bool        `json:"idempotent_replay"`
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// GroupView exposes a group's settings.
type GroupView struct {
	GroupID                    string    `json:"group_id"`
	Name                       string    `json:"name"`
	InviteCode                 string    `json:"invite_code"`
	MinWorkoutsPerWeek         int       `json:"min_workouts_per_week"`
	MinWorkoutMinutesToQualify int       `json:"min_workout_minutes_to_qualify"`
	CreatedBy                  string    `json:"created_by"`
	CreatedAt                  time.Time `json:"created_at"`
}

// GroupsResponse packages the caller's groups.
type GroupsResponse struct {
	Items []GroupView `json:"items"`
}

// FeedEntryView is one workout in a group feed.
type FeedEntryView struct {
	GroupWorkoutID  string    `json:"group_workout_id"`
	WorkoutID       string    `json:"workout_id"`
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name,omitempty"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	WeekKey         string    `json:"week_key"`
	IsQualified     bool      `json:"is_qualified"`
	CreatedAt       time.Time `json:"created_at"`
}

// GroupFeedResponse packages a page of a group feed.
type GroupFeedResponse struct {
	Items      []FeedEntryView `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ReactionView is one member's reaction.
type ReactionView struct {
	ReactionID     string    `json:"reaction_id"`
	GroupWorkoutID string    `json:"group_workout_id"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Emoji          string    `json:"emoji"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReactionCountView counts one emoji.
type ReactionCountView struct {
	Emoji         string `json:"emoji"`
	Count         int    `json:"count"`
	ViewerReacted bool   `json:"viewer_reacted"`
}

// ReactionsResponse packages the reactions of a group workout with per-emoji counts.
type ReactionsResponse struct {
	GroupWorkoutID string              `json:"group_workout_id"`
	Counts         []ReactionCountView `json:"counts"`
	Items          []ReactionView      `json:"items"`
}

// CommentView is one comment. ParentID is set on replies.
type CommentView struct {
	CommentID      string    `json:"comment_id"`
	GroupWorkoutID string    `json:"group_workout_id"`
	UserID         string    `json:"user_id"`
	Author         string    `json:"author"`
	ParentID       string    `json:"parent_id,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// CommentsResponse packages the comments of a group workout, oldest first.
type CommentsResponse struct {
	Items []CommentView `json:"items"`
}

// MemberView is one roster entry.
type MemberView struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// MembersResponse packages a group roster.
type MembersResponse struct {
	Items []MemberView `json:"items"`
}

// ComplianceView is one member's standing for the week.
type ComplianceView struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name,omitempty"`
	QualifiedCount int    `json:"qualified_count"`
	Required       int    `json:"required"`
	IsCompliant    bool   `json:"is_compliant"`
}

// ComplianceResponse packages the weekly compliance of a group.
type ComplianceResponse struct {
	GroupID string           `json:"group_id"`
	WeekKey string           `json:"week_key"`
	Items   []ComplianceView `json:"items"`
}

// LeaderboardView is one ranked entry.
type LeaderboardView struct {
	Rank                   int    `json:"rank"`
	UserID                 string `json:"user_id"`
	Username               string `json:"username"`
	DisplayName            string `json:"display_name,omitempty"`
	TotalQualifiedWorkouts int    `json:"total_qualified_workouts"`
	TotalMinutes           int    `json:"total_minutes"`
	AvgMinutes             int    `json:"avg_minutes"`
}

// LeaderboardResponse packages a ranked leaderboard.
type LeaderboardResponse struct {
	GroupID string            `json:"group_id"`
	Period  string            `json:"period"`
	Items   []LeaderboardView `json:"items"`
}

// StatsView exposes a user's lifetime statistics. DayDistribution starts on Sunday.
type StatsView struct {
	UserID          string `json:"user_id"`
	TotalWorkouts   int    `json:"total_workouts"`
	TotalMinutes    int    `json:"total_minutes"`
	AvgMinutes      int    `json:"avg_minutes"`
	LongestWorkout  int    `json:"longest_workout"`
	ThisWeekCount   int    `json:"this_week_count"`
	ThisMonthCount  int    `json:"this_month_count"`
	CurrentStreak   int    `json:"current_streak"`
	BestStreak      int    `json:"best_streak"`
	DayDistribution [7]int `json:"day_distribution"`
}

func toWorkoutView(w domain.Workout) WorkoutView {
	groups := make([]GroupLinkView, 0, len(w.Links))
	for _, link := range w.Links {
		groups = append(groups, GroupLinkView{
			GroupID:     link.GroupID,
			WeekKey:     link.WeekKey,
			IsQualified: link.IsQualified,
		})
	}
	return WorkoutView{
		WorkoutID:       w.ID,
		UserID:          w.UserID,
		Title:           w.Title,
		Description:     w.Description,
		DurationMinutes: w.DurationMinutes,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
		Groups:          groups,
	}
}

func toGroupView(g domain.Group) GroupView {
	return GroupView{
		GroupID:                    g.ID,
		Name:                       g.Name,
		InviteCode:                 g.InviteCode,
		MinWorkoutsPerWeek:         g.MinWorkoutsPerWeek,
		MinWorkoutMinutesToQualify: g.MinWorkoutMinutesToQualify,
		CreatedBy:                  g.CreatedBy,
		CreatedAt:                  g.CreatedAt,
	}
}

func toStatsView(userID string, s domain.UserStats) StatsView {
	return StatsView{
		UserID:          userID,
		TotalWorkouts:   s.TotalWorkouts,
		TotalMinutes:    s.TotalMinutes,
		AvgMinutes:      s.AvgMinutes,
		LongestWorkout:  s.LongestWorkout,
		ThisWeekCount:   s.ThisWeekCount,
		ThisMonthCount:  s.ThisMonthCount,
		CurrentStreak:   s.CurrentStreak,
		BestStreak:      s.BestStreak,
		DayDistribution: s.DayDistribution,
	}
}

func toFeedEntryView(e domain.FeedEntry) FeedEntryView {
	author := domain.Member{UserID: e.UserID, Username: e.Username}
	return FeedEntryView{
		GroupWorkoutID:  e.ID,
		WorkoutID:       e.WorkoutID,
		UserID:          e.UserID,
		Username:        author.Label(),
		DisplayName:     e.DisplayName,
		Title:           e.Title,
		Description:     e.Description,
		DurationMinutes: e.DurationMinutes,
		WeekKey:         e.WeekKey,
		IsQualified:     e.IsQualified,
		CreatedAt:       e.CreatedAt,
	}
}

func toReactionView(x domain.Reaction) ReactionView {
	author := domain.Member{UserID: x.UserID, Username: x.Username}
	return ReactionView{
		ReactionID:     x.ID,
		GroupWorkoutID: x.GroupWorkoutID,
		UserID:         x.UserID,
		Username:       author.Label(),
		Emoji:          x.Emoji,
		CreatedAt:      x.CreatedAt,
	}
}

func toReactionsResponse(groupWorkoutID string, reactions []domain.Reaction, viewerID string) ReactionsResponse {
	resp := ReactionsResponse{
		GroupWorkoutID: groupWorkoutID,
		Counts:         make([]ReactionCountView, 0),
		Items:          make([]ReactionView, 0, len(reactions)),
	}
	for _, s := range domain.SummarizeReactions(reactions, viewerID) {
		resp.Counts = append(resp.Counts, ReactionCountView{Emoji: s.Emoji, Count: s.Count, ViewerReacted: s.ViewerReacted})
	}
	for _, x := range reactions {
		resp.Items = append(resp.Items, toReactionView(x))
	}
	return resp
}

func toCommentView(c domain.Comment) CommentView {
	return CommentView{
		CommentID:      c.ID,
		GroupWorkoutID: c.GroupWorkoutID,
		UserID:         c.UserID,
		Author:         c.Author(),
		ParentID:       c.ParentID,
		Body:           c.Body,
		CreatedAt:      c.CreatedAt,
	}
}
