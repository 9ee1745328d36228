package memory

import (
	"context"
	"slices"
	"strings"

	"example.com/ibblog/internal/domain"
)

// GetGroupWorkout implements domain.Repository.
func (r *Repository) GetGroupWorkout(_ context.Context, groupWorkoutID string) (*domain.GroupWorkout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workouts {
		for _, link := range w.Links {
			if link.ID == groupWorkoutID {
				return &link, nil
			}
		}
	}
	return nil, nil
}

// ListGroupFeed implements domain.Repository, newest link first with ties broken by link ID descending.
func (r *Repository) ListGroupFeed(_ context.Context, groupID string, cursor *domain.Cursor, limit int) ([]domain.FeedEntry, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []domain.FeedEntry
	for _, w := range r.workouts {
		for _, link := range w.Links {
			if link.GroupID != groupID {
				continue
			}
			author := r.withProfile(domain.Member{UserID: w.UserID})
			all = append(all, domain.FeedEntry{
				GroupWorkout:    link,
				UserID:          w.UserID,
				Username:        author.Username,
				DisplayName:     author.DisplayName,
				Title:           w.Title,
				Description:     w.Description,
				DurationMinutes: w.DurationMinutes,
			})
		}
	}
	slices.SortFunc(all, func(a, b domain.FeedEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	results := make([]domain.FeedEntry, 0, limit)
	for _, e := range all {
		if cursor != nil && !olderThanCursor(e.CreatedAt, e.ID, cursor) {
			continue
		}
		results = append(results, e)
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

// AddReaction implements domain.Repository.
func (r *Repository) AddReaction(_ context.Context, reaction domain.Reaction) (*domain.Reaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reactions {
		if existing.GroupWorkoutID == reaction.GroupWorkoutID && existing.UserID == reaction.UserID && existing.Emoji == reaction.Emoji {
			existing.Username = r.withProfile(domain.Member{UserID: existing.UserID}).Username
			return &existing, false, nil
		}
	}
	r.reactions = append(r.reactions, reaction)
	reaction.Username = r.withProfile(domain.Member{UserID: reaction.UserID}).Username
	return &reaction, true, nil
}

// RemoveReaction implements domain.Repository.
func (r *Repository) RemoveReaction(_ context.Context, groupWorkoutID, userID, emoji string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.reactions)
	r.reactions = slices.DeleteFunc(r.reactions, func(x domain.Reaction) bool {
		return x.GroupWorkoutID == groupWorkoutID && x.UserID == userID && x.Emoji == emoji
	})
	return len(r.reactions) < before, nil
}

// ListReactions implements domain.Repository, oldest first.
func (r *Repository) ListReactions(_ context.Context, groupWorkoutID string) ([]domain.Reaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Reaction, 0)
	for _, x := range r.reactions {
		if x.GroupWorkoutID == groupWorkoutID {
			x.Username = r.withProfile(domain.Member{UserID: x.UserID}).Username
			out = append(out, x)
		}
	}
	return out, nil
}

// AddComment implements domain.Repository.
func (r *Repository) AddComment(_ context.Context, comment domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, comment)
	return nil
}

// GetComment implements domain.Repository.
func (r *Repository) GetComment(_ context.Context, commentID string) (*domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.comments {
		if c.ID == commentID {
			c = r.withCommentAuthor(c)
			return &c, nil
		}
	}
	return nil, nil
}

// ListComments implements domain.Repository, oldest first.
func (r *Repository) ListComments(_ context.Context, groupWorkoutID string) ([]domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Comment, 0)
	for _, c := range r.comments {
		if c.GroupWorkoutID == groupWorkoutID {
			out = append(out, r.withCommentAuthor(c))
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Comment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *Repository) withCommentAuthor(c domain.Comment) domain.Comment {
	author := r.withProfile(domain.Member{UserID: c.UserID})
	c.Username = author.Username
	c.DisplayName = author.DisplayName
	return c
}
