package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ibblog/internal/domain"
	"example.com/ibblog/internal/events"
	"example.com/ibblog/internal/observability"
)

const uniqueViolation = "23505"

const workoutColumns = `w.id, w.user_id, w.title, COALESCE(w.description, ''), w.duration_minutes, w.created_at, w.updated_at`

// Repository provides Postgres-backed persistence for workouts, groups and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByIdempotency checks if a workout already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.Workout, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + workoutColumns + ` FROM workouts w WHERE w.user_id=$1 AND w.idempotency_key=$2`
	return r.getWorkout(ctx, query, userID, idempotencyKey)
}

// CreateWorkout persists the workout, its group links and a workout.logged outbox event in one transaction.
func (r *Repository) CreateWorkout(ctx context.Context, workout domain.Workout, idempotencyKey string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO workouts (id, user_id, title, description, duration_minutes, idempotency_key, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		workout.ID,
		workout.UserID,
		workout.Title,
		nullIfEmpty(workout.Description),
		workout.DurationMinutes,
		nullIfEmpty(idempotencyKey),
		workout.CreatedAt,
		workout.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, link := range workout.Links {
		_, err = tx.Exec(ctx,
			`INSERT INTO group_workouts (id, workout_id, group_id, week_key, is_qualified, created_at)
            VALUES ($1,$2,$3,$4,$5,$6)`,
			link.ID, workout.ID, link.GroupID, link.WeekKey, link.IsQualified, link.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	if err = r.insertOutbox(ctx, tx, workout, events.TypeWorkoutLogged); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	observability.RecordWorkoutPersisted(workout.CreatedAt)
	for _, link := range workout.Links {
		observability.RecordLinkCreated(link.IsQualified)
	}
	return nil
}

// UpdateWorkout stores edited fields and re-evaluated qualification flags. Week keys are never rewritten.
func (r *Repository) UpdateWorkout(ctx context.Context, workout domain.Workout) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE workouts SET title=$2, description=$3, duration_minutes=$4, updated_at=$5 WHERE id=$1`,
		workout.ID, workout.Title, nullIfEmpty(workout.Description), workout.DurationMinutes, workout.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrWorkoutNotFound
		return err
	}

	for _, link := range workout.Links {
		if _, err = tx.Exec(ctx,
			`UPDATE group_workouts SET is_qualified=$3 WHERE workout_id=$1 AND group_id=$2`,
			workout.ID, link.GroupID, link.IsQualified,
		); err != nil {
			return err
		}
	}

	if err = r.insertOutbox(ctx, tx, workout, events.TypeWorkoutUpdated); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, workout domain.Workout, eventType string) error {
	payload := events.WorkoutLogged{
		WorkoutID:       workout.ID,
		UserID:          workout.UserID,
		DurationMinutes: workout.DurationMinutes,
		CreatedAt:       workout.CreatedAt,
		UpdatedAt:       workout.UpdatedAt,
		Groups:          make([]events.WorkoutGroupLink, 0, len(workout.Links)),
	}
	for _, link := range workout.Links {
		payload.Groups = append(payload.Groups, events.WorkoutGroupLink{
			GroupID:     link.GroupID,
			WeekKey:     link.WeekKey,
			IsQualified: link.IsQualified,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	dedupeKey := fmt.Sprintf("%s:%s:%d", workout.ID, eventType, workout.UpdatedAt.UnixNano())

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"workout",
		workout.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		workout.UserID,
		body,
		dedupeKey,
	)
	return err
}

// GetWorkout retrieves a workout with its group links.
func (r *Repository) GetWorkout(ctx context.Context, workoutID string) (*domain.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts w WHERE w.id=$1`
	return r.getWorkout(ctx, query, workoutID)
}

func (r *Repository) getWorkout(ctx context.Context, query string, args ...any) (*domain.Workout, error) {
	var w domain.Workout
	err := r.pool.QueryRow(ctx, query, args...).Scan(&w.ID, &w.UserID, &w.Title, &w.Description, &w.DurationMinutes, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	links, err := r.linksFor(ctx, []string{w.ID})
	if err != nil {
		return nil, err
	}
	w.Links = links[w.ID]
	return &w, nil
}

// ListWorkoutsByUser returns a page of the user's workouts, newest first.
func (r *Repository) ListWorkoutsByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	args := []any{userID, limit}
	query := `SELECT ` + workoutColumns + ` FROM workouts w WHERE w.user_id=$1`

	if cursor != nil {
		query += ` AND (w.created_at, w.id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY w.created_at DESC, w.id DESC LIMIT $2`

	results, err := r.queryWorkouts(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// ListWorkoutHistory returns every workout of the user with all group links.
func (r *Repository) ListWorkoutHistory(ctx context.Context, userID string) ([]domain.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts w WHERE w.user_id=$1 ORDER BY w.created_at DESC, w.id DESC`
	return r.queryWorkouts(ctx, query, userID)
}

func (r *Repository) queryWorkouts(ctx context.Context, query string, args ...any) ([]domain.Workout, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Workout, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var w domain.Workout
		if err := rows.Scan(&w.ID, &w.UserID, &w.Title, &w.Description, &w.DurationMinutes, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, w)
		ids = append(ids, w.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return results, nil
	}

	links, err := r.linksFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Links = links[results[i].ID]
	}
	return results, nil
}

func (r *Repository) linksFor(ctx context.Context, workoutIDs []string) (map[string][]domain.GroupWorkout, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, workout_id, group_id, week_key, is_qualified, created_at
        FROM group_workouts WHERE workout_id = ANY($1) ORDER BY created_at, id`, workoutIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.GroupWorkout, len(workoutIDs))
	for rows.Next() {
		var l domain.GroupWorkout
		if err := rows.Scan(&l.ID, &l.WorkoutID, &l.GroupID, &l.WeekKey, &l.IsQualified, &l.CreatedAt); err != nil {
			return nil, err
		}
		out[l.WorkoutID] = append(out[l.WorkoutID], l)
	}
	return out, rows.Err()
}

// CreateGroup inserts the group and its creator's admin membership.
func (r *Repository) CreateGroup(ctx context.Context, group domain.Group, creator domain.Member) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO groups (id, name, invite_code, min_workouts_per_week, min_workout_minutes_to_qualify, created_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		group.ID, group.Name, group.InviteCode, group.MinWorkoutsPerWeek, group.MinWorkoutMinutesToQualify, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertMember(ctx, tx, group.ID, creator); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const groupColumns = `id, name, invite_code, min_workouts_per_week, min_workout_minutes_to_qualify, created_by, created_at`

// GetGroup retrieves a group by ID.
func (r *Repository) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	return r.getGroup(ctx, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
}

// GetGroupByInviteCode retrieves the group owning an invite code.
func (r *Repository) GetGroupByInviteCode(ctx context.Context, inviteCode string) (*domain.Group, error) {
	return r.getGroup(ctx, `SELECT `+groupColumns+` FROM groups WHERE invite_code=$1`, inviteCode)
}

func (r *Repository) getGroup(ctx context.Context, query string, arg string) (*domain.Group, error) {
	var g domain.Group
	err := r.pool.QueryRow(ctx, query, arg).Scan(&g.ID, &g.Name, &g.InviteCode, &g.MinWorkoutsPerWeek, &g.MinWorkoutMinutesToQualify, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// AddMember inserts a membership, mapping duplicate rows to domain.ErrAlreadyMember.
func (r *Repository) AddMember(ctx context.Context, groupID string, member domain.Member) error {
	return insertMember(ctx, r.pool, groupID, member)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertMember(ctx context.Context, db execer, groupID string, member domain.Member) error {
	_, err := db.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES ($1,$2,$3,$4)`,
		groupID, member.UserID, string(member.Role), member.JoinedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyMember
	}
	return err
}

const memberColumns = `m.user_id, COALESCE(p.username, ''), COALESCE(p.display_name, ''), m.role, m.joined_at`

// GetMember retrieves one membership joined with the member's profile.
func (r *Repository) GetMember(ctx context.Context, groupID, userID string) (*domain.Member, error) {
	var m domain.Member
	err := r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM group_members m LEFT JOIN profiles p ON p.id = m.user_id
        WHERE m.group_id=$1 AND m.user_id=$2`, groupID, userID,
	).Scan(&m.UserID, &m.Username, &m.DisplayName, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMembers returns the group's roster joined with profiles, oldest membership first.
func (r *Repository) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM group_members m LEFT JOIN profiles p ON p.id = m.user_id
        WHERE m.group_id=$1 ORDER BY m.joined_at, m.user_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.UserID, &m.Username, &m.DisplayName, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListQualifiedUserIDs returns one user ID per qualified link of the group in weekKey.
func (r *Repository) ListQualifiedUserIDs(ctx context.Context, groupID, weekKey string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.user_id FROM group_workouts gw JOIN workouts w ON w.id = gw.workout_id
        WHERE gw.group_id=$1 AND gw.week_key=$2 AND gw.is_qualified`, groupID, weekKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// ListLinkActivity returns every link of the group joined with its workout, oldest first.
func (r *Repository) ListLinkActivity(ctx context.Context, groupID string) ([]domain.LinkActivity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.user_id, w.duration_minutes, gw.is_qualified, gw.week_key, gw.created_at
        FROM group_workouts gw JOIN workouts w ON w.id = gw.workout_id
        WHERE gw.group_id=$1 ORDER BY gw.created_at, gw.id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]domain.LinkActivity, 0)
	for rows.Next() {
		var l domain.LinkActivity
		if err := rows.Scan(&l.UserID, &l.DurationMinutes, &l.IsQualified, &l.WeekKey, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeWorkoutLogged: {
		Topic:         "workout_events",
		SchemaSubject: "workout_events-value",
	},
	events.TypeWorkoutUpdated: {
		Topic:         "workout_events",
		SchemaSubject: "workout_events-value",
	},
}
