package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrGroupWorkoutNotFound is returned when a group workout is missing or hidden from the viewer.
	ErrGroupWorkoutNotFound = errors.New("group workout not found")
	// ErrReactionNotFound is returned when removing a reaction that was never added.
	ErrReactionNotFound = errors.New("reaction not found")
)

// MaxCommentLength bounds a comment body in runes.
const MaxCommentLength = 1000

// ReactionEmojis lists the reactions members may leave, in display order.
var ReactionEmojis = []string{"💪", "🔥", "👏", "🎯", "⭐"}

// FeedEntry is one workout as posted to a group, joined with its author.
type FeedEntry struct {
	GroupWorkout
	UserID          string
	Username        string
	DisplayName     string
	Title           string
	Description     string
	DurationMinutes int
}

// Reaction is one member's emoji on a group workout. A member leaves each emoji at most once.
type Reaction struct {
	ID             string
	GroupWorkoutID string
	UserID         string
	Username       string
	Emoji          string
	CreatedAt      time.Time
}

// ReactionSummary counts one emoji on a group workout.
type ReactionSummary struct {
	Emoji         string
	Count         int
	ViewerReacted bool
}

// SummarizeReactions counts reactions per emoji in ReactionEmojis order. Emojis
// nobody used are omitted.
func SummarizeReactions(reactions []Reaction, viewerID string) []ReactionSummary {
	counts := make(map[string]*ReactionSummary, len(ReactionEmojis))
	for _, r := range reactions {
		s, ok := counts[r.Emoji]
		if !ok {
			s = &ReactionSummary{Emoji: r.Emoji}
			counts[r.Emoji] = s
		}
		s.Count++
		if r.UserID == viewerID {
			s.ViewerReacted = true
		}
	}

	out := make([]ReactionSummary, 0, len(counts))
	for _, emoji := range ReactionEmojis {
		if s, ok := counts[emoji]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Comment is a message on a group workout. ParentID is empty for top-level comments.
type Comment struct {
	ID             string
	GroupWorkoutID string
	UserID         string
	Username       string
	DisplayName    string
	ParentID       string
	Body           string
	CreatedAt      time.Time
}

// Author returns the display name, then the username, then UnknownUsername.
func (c Comment) Author() string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.Username != "":
		return c.Username
	}
	return UnknownUsername
}

// ListMyGroups returns the groups userID belongs to, most recently joined first.
func (s *Service) ListMyGroups(ctx context.Context, userID string) ([]Group, error) {
	return s.repo.ListGroupsByUser(ctx, userID)
}

// GroupFeed pages through the workouts posted to a group, newest first.
func (s *Service) GroupFeed(ctx context.Context, groupID, viewerID string, cursor *Cursor, limit int) ([]FeedEntry, *Cursor, error) {
	if _, err := s.memberGroup(ctx, groupID, viewerID); err != nil {
		return nil, nil, err
	}
	return s.repo.ListGroupFeed(ctx, groupID, cursor, limit)
}

// React adds emoji from userID to a group workout. Reacting twice with the
// same emoji returns the existing reaction and false.
func (s *Service) React(ctx context.Context, groupWorkoutID, userID, emoji string) (*Reaction, bool, error) {
	emoji = strings.TrimSpace(emoji)
	if !slices.Contains(ReactionEmojis, emoji) {
		return nil, false, fmt.Errorf("%w: unsupported reaction %q", ErrValidation, emoji)
	}
	if _, err := s.groupWorkoutForMember(ctx, groupWorkoutID, userID); err != nil {
		return nil, false, err
	}

	reaction := Reaction{
		ID:             uuid.NewString(),
		GroupWorkoutID: groupWorkoutID,
		UserID:         userID,
		Emoji:          emoji,
		CreatedAt:      s.now(),
	}
	stored, created, err := s.repo.AddReaction(ctx, reaction)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Unreact removes userID's emoji from a group workout.
func (s *Service) Unreact(ctx context.Context, groupWorkoutID, userID, emoji string) error {
	if _, err := s.groupWorkoutForMember(ctx, groupWorkoutID, userID); err != nil {
		return err
	}
	removed, err := s.repo.RemoveReaction(ctx, groupWorkoutID, userID, strings.TrimSpace(emoji))
	if err != nil {
		return err
	}
	if !removed {
		return ErrReactionNotFound
	}
	return nil
}

// ListReactions returns every reaction on a group workout, oldest first.
func (s *Service) ListReactions(ctx context.Context, groupWorkoutID, viewerID string) ([]Reaction, error) {
	if _, err := s.groupWorkoutForMember(ctx, groupWorkoutID, viewerID); err != nil {
		return nil, err
	}
	return s.repo.ListReactions(ctx, groupWorkoutID)
}

// AddCommentInput carries a new comment. ParentID answers an existing comment on the same group workout.
type AddCommentInput struct {
	GroupWorkoutID string
	UserID         string
	ParentID       string
	Body           string
}

// AddComment stores a comment by a member of the workout's group.
func (s *Service) AddComment(ctx context.Context, input AddCommentInput) (*Comment, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", ErrValidation)
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return nil, fmt.Errorf("%w: body must be at most %d characters", ErrValidation, MaxCommentLength)
	}
	if _, err := s.groupWorkoutForMember(ctx, input.GroupWorkoutID, input.UserID); err != nil {
		return nil, err
	}

	parentID := strings.TrimSpace(input.ParentID)
	if parentID != "" {
		parent, err := s.repo.GetComment(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.GroupWorkoutID != input.GroupWorkoutID {
			return nil, fmt.Errorf("%w: parent comment %s is not on this workout", ErrValidation, parentID)
		}
	}

	comment := Comment{
		ID:             uuid.NewString(),
		GroupWorkoutID: input.GroupWorkoutID,
		UserID:         input.UserID,
		ParentID:       parentID,
		Body:           body,
		CreatedAt:      s.now(),
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	stored, err := s.repo.GetComment(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &comment, nil
	}
	return stored, nil
}

// ListComments returns the comments of a group workout, oldest first.
func (s *Service) ListComments(ctx context.Context, groupWorkoutID, viewerID string) ([]Comment, error) {
	if _, err := s.groupWorkoutForMember(ctx, groupWorkoutID, viewerID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, groupWorkoutID)
}

// groupWorkoutForMember loads a group workout visible to userID. Non-members
// get ErrGroupWorkoutNotFound so that existence is not leaked.
func (s *Service) groupWorkoutForMember(ctx context.Context, groupWorkoutID, userID string) (*GroupWorkout, error) {
	link, err := s.repo.GetGroupWorkout(ctx, groupWorkoutID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrGroupWorkoutNotFound
	}
	member, err := s.repo.GetMember(ctx, link.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrGroupWorkoutNotFound
	}
	return link, nil
}
