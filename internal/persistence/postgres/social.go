package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/ibblog/internal/domain"
)

// ListGroupsByUser returns the user's groups, most recently joined first.
func (r *Repository) ListGroupsByUser(ctx context.Context, userID string) ([]domain.Group, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.name, g.invite_code, g.min_workouts_per_week, g.min_workout_minutes_to_qualify, g.created_by, g.created_at
        FROM group_members m JOIN groups g ON g.id = m.group_id
        WHERE m.user_id=$1 ORDER BY m.joined_at DESC, g.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]domain.Group, 0)
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.InviteCode, &g.MinWorkoutsPerWeek, &g.MinWorkoutMinutesToQualify, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetGroupWorkout retrieves one workout-to-group link.
func (r *Repository) GetGroupWorkout(ctx context.Context, groupWorkoutID string) (*domain.GroupWorkout, error) {
	var l domain.GroupWorkout
	err := r.pool.QueryRow(ctx,
		`SELECT id, workout_id, group_id, week_key, is_qualified, created_at FROM group_workouts WHERE id=$1`, groupWorkoutID,
	).Scan(&l.ID, &l.WorkoutID, &l.GroupID, &l.WeekKey, &l.IsQualified, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// ListGroupFeed returns a page of the group's posted workouts joined with their authors, newest first.
func (r *Repository) ListGroupFeed(ctx context.Context, groupID string, cursor *domain.Cursor, limit int) ([]domain.FeedEntry, *domain.Cursor, error) {
	args := []any{groupID, limit}
	query := `SELECT gw.id, gw.workout_id, gw.group_id, gw.week_key, gw.is_qualified, gw.created_at,
            w.user_id, COALESCE(p.username, ''), COALESCE(p.display_name, ''), w.title, COALESCE(w.description, ''), w.duration_minutes
        FROM group_workouts gw
        JOIN workouts w ON w.id = gw.workout_id
        LEFT JOIN profiles p ON p.id = w.user_id
        WHERE gw.group_id=$1`

	if cursor != nil {
		query += ` AND (gw.created_at, gw.id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY gw.created_at DESC, gw.id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	entries := make([]domain.FeedEntry, 0)
	for rows.Next() {
		var e domain.FeedEntry
		if err := rows.Scan(&e.ID, &e.WorkoutID, &e.GroupID, &e.WeekKey, &e.IsQualified, &e.CreatedAt,
			&e.UserID, &e.Username, &e.DisplayName, &e.Title, &e.Description, &e.DurationMinutes); err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(entries) == limit {
		last := entries[len(entries)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return entries, next, nil
}

const reactionColumns = `x.id, x.group_workout_id, x.user_id, COALESCE(p.username, ''), x.emoji, x.created_at`

// AddReaction inserts the reaction, returning the existing row when the user already left that emoji.
func (r *Repository) AddReaction(ctx context.Context, reaction domain.Reaction) (*domain.Reaction, bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO reactions (id, group_workout_id, user_id, emoji, created_at) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (group_workout_id, user_id, emoji) DO NOTHING`,
		reaction.ID, reaction.GroupWorkoutID, reaction.UserID, reaction.Emoji, reaction.CreatedAt,
	)
	if err != nil {
		return nil, false, err
	}

	var stored domain.Reaction
	err = r.pool.QueryRow(ctx,
		`SELECT `+reactionColumns+` FROM reactions x LEFT JOIN profiles p ON p.id = x.user_id
        WHERE x.group_workout_id=$1 AND x.user_id=$2 AND x.emoji=$3`,
		reaction.GroupWorkoutID, reaction.UserID, reaction.Emoji,
	).Scan(&stored.ID, &stored.GroupWorkoutID, &stored.UserID, &stored.Username, &stored.Emoji, &stored.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return &stored, tag.RowsAffected() == 1, nil
}

// RemoveReaction deletes the user's emoji and reports whether a row existed.
func (r *Repository) RemoveReaction(ctx context.Context, groupWorkoutID, userID, emoji string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM reactions WHERE group_workout_id=$1 AND user_id=$2 AND emoji=$3`,
		groupWorkoutID, userID, emoji,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListReactions returns the reactions of a group workout joined with usernames, oldest first.
func (r *Repository) ListReactions(ctx context.Context, groupWorkoutID string) ([]domain.Reaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reactionColumns+` FROM reactions x LEFT JOIN profiles p ON p.id = x.user_id
        WHERE x.group_workout_id=$1 ORDER BY x.created_at, x.id`, groupWorkoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reactions := make([]domain.Reaction, 0)
	for rows.Next() {
		var x domain.Reaction
		if err := rows.Scan(&x.ID, &x.GroupWorkoutID, &x.UserID, &x.Username, &x.Emoji, &x.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, x)
	}
	return reactions, rows.Err()
}

// AddComment inserts a comment.
func (r *Repository) AddComment(ctx context.Context, comment domain.Comment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO comments (id, group_workout_id, user_id, parent_id, body, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		comment.ID, comment.GroupWorkoutID, comment.UserID, nullIfEmpty(comment.ParentID), comment.Body, comment.CreatedAt,
	)
	return err
}

const commentColumns = `c.id, c.group_workout_id, c.user_id, COALESCE(p.username, ''), COALESCE(p.display_name, ''), COALESCE(c.parent_id, ''), c.body, c.created_at`

// GetComment retrieves a comment joined with its author's profile.
func (r *Repository) GetComment(ctx context.Context, commentID string) (*domain.Comment, error) {
	var c domain.Comment
	err := r.pool.QueryRow(ctx,
		`SELECT `+commentColumns+` FROM comments c LEFT JOIN profiles p ON p.id = c.user_id WHERE c.id=$1`, commentID,
	).Scan(&c.ID, &c.GroupWorkoutID, &c.UserID, &c.Username, &c.DisplayName, &c.ParentID, &c.Body, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListComments returns the comments of a group workout, oldest first.
func (r *Repository) ListComments(ctx context.Context, groupWorkoutID string) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM comments c LEFT JOIN profiles p ON p.id = c.user_id
        WHERE c.group_workout_id=$1 ORDER BY c.created_at, c.id`, groupWorkoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.GroupWorkoutID, &c.UserID, &c.Username, &c.DisplayName, &c.ParentID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
