// Package api exposes the HTTP handlers of the workout accountability service.
package api

import (
	"cmp"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"example.com/ibblog/internal/auth"
	"example.com/ibblog/internal/domain"
	"example.com/ibblog/internal/persistence"
	"example.com/ibblog/internal/weekkey"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/workouts/{id}", h.workoutByID)
	mux.HandleFunc("/v1/groups", h.groups)
	mux.HandleFunc("/v1/groups/join", h.joinGroup)
	mux.HandleFunc("/v1/groups/{id}/members", h.groupMembers)
	mux.HandleFunc("/v1/groups/{id}/workouts", h.groupFeed)
	mux.HandleFunc("/v1/groups/{id}/compliance", h.groupCompliance)
	mux.HandleFunc("/v1/groups/{id}/leaderboard", h.groupLeaderboard)
	mux.HandleFunc("/v1/users/{id}/stats", h.userStats)
	mux.HandleFunc("/v1/group-workouts/{id}/reactions", h.reactions)
	mux.HandleFunc("/v1/group-workouts/{id}/comments", h.comments)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.logWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) workoutByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		h.getWorkout(w, r, id)
	case http.MethodPatch:
		h.updateWorkout(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) logWorkout(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req LogWorkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	workout, replay, err := h.service.LogWorkout(r.Context(), domain.LogWorkoutInput{
		UserID:          claims.Subject,
		GroupIDs:        req.GroupIDs,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, LogWorkoutResponse{Workout: toWorkoutView(*workout), Replay: replay})
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("user_id"))
	if userID == "" || userID == "me" {
		userID = claims.Subject
	}
	if userID != claims.Subject {
		writeError(w, http.StatusForbidden, "forbidden", "only your own workouts can be listed")
		return
	}

	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	workouts, next, err := h.service.ListWorkouts(r.Context(), userID, cursor, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]WorkoutView, 0, len(workouts))
	for _, workout := range workouts {
		items = append(items, toWorkoutView(workout))
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	workout, err := h.service.ViewWorkout(r.Context(), id, claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*workout))
}

func (h *Handler) updateWorkout(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req UpdateWorkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == nil && req.Description == nil && req.DurationMinutes == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "nothing to update")
		return
	}

	workout, err := h.service.UpdateWorkout(r.Context(), domain.UpdateWorkoutInput{
		WorkoutID:       id,
		UserID:          claims.Subject,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*workout))
}

func (h *Handler) groups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createGroup(w, r)
	case http.MethodGet:
		h.listMyGroups(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listMyGroups(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeGroupsRead, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	groups, err := h.service.ListMyGroups(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		items = append(items, toGroupView(g))
	}
	writeJSON(w, http.StatusOK, GroupsResponse{Items: items})
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	group, err := h.service.CreateGroup(r.Context(), domain.CreateGroupInput{
		CreatorID:                  claims.Subject,
		Name:                       req.Name,
		MinWorkoutsPerWeek:         req.MinWorkoutsPerWeek,
		MinWorkoutMinutesToQualify: req.MinWorkoutMinutesToQualify,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupView(*group))
}

func (h *Handler) joinGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	var req JoinGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.InviteCode) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "invite_code is required")
		return
	}

	group, err := h.service.JoinGroup(r.Context(), claims.Subject, req.InviteCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupView(*group))
}

func (h *Handler) groupMembers(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorizeGet(w, r, auth.ScopeGroupsRead)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), r.PathValue("id"), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]MemberView, 0, len(members))
	for _, m := range members {
		items = append(items, MemberView{
			UserID:      m.UserID,
			Username:    m.Label(),
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
			JoinedAt:    m.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, MembersResponse{Items: items})
}

func (h *Handler) groupCompliance(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorizeGet(w, r, auth.ScopeGroupsRead)
	if !ok {
		return
	}

	report, err := h.service.WeeklyCompliance(r.Context(), r.PathValue("id"), claims.Subject, strings.TrimSpace(r.URL.Query().Get("week")))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	results := slices.Clone(report.Results)
	slices.SortStableFunc(results, func(a, b domain.ComplianceResult) int {
		if c := cmp.Compare(b.QualifiedCount, a.QualifiedCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})

	items := make([]ComplianceView, 0, len(results))
	for _, res := range results {
		items = append(items, ComplianceView{
			UserID:         res.UserID,
			Username:       res.Username,
			DisplayName:    res.DisplayName,
			QualifiedCount: res.QualifiedCount,
			Required:       res.Required,
			IsCompliant:    res.IsCompliant,
		})
	}
	writeJSON(w, http.StatusOK, ComplianceResponse{GroupID: report.GroupID, WeekKey: report.WeekKey, Items: items})
}

func (h *Handler) groupLeaderboard(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorizeGet(w, r, auth.ScopeGroupsRead)
	if !ok {
		return
	}

	period, err := domain.ParsePeriod(strings.TrimSpace(r.URL.Query().Get("period")))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	report, err := h.service.Leaderboard(r.Context(), r.PathValue("id"), claims.Subject, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]LeaderboardView, 0, len(report.Entries))
	for i, e := range report.Entries {
		items = append(items, LeaderboardView{
			Rank:                   i + 1,
			UserID:                 e.UserID,
			Username:               e.Username,
			DisplayName:            e.DisplayName,
			TotalQualifiedWorkouts: e.TotalQualifiedWorkouts,
			TotalMinutes:           e.TotalMinutes,
			AvgMinutes:             e.AvgMinutes,
		})
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{GroupID: report.GroupID, Period: string(report.Period), Items: items})
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorizeGet(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	userID := r.PathValue("id")
	if userID == "me" {
		userID = claims.Subject
	}

	stats, err := h.service.UserStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsView(userID, stats))
}

func (h *Handler) groupFeed(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorizeGet(w, r, auth.ScopeGroupsRead, auth.ScopeGroupsWrite)
	if !ok {
		return
	}
	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	entries, next, err := h.service.GroupFeed(r.Context(), r.PathValue("id"), claims.Subject, cursor, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]FeedEntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, toFeedEntryView(e))
	}
	writeJSON(w, http.StatusOK, GroupFeedResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) reactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		h.listReactions(w, r, id)
	case http.MethodPost:
		h.addReaction(w, r, id)
	case http.MethodDelete:
		h.removeReaction(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listReactions(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeGroupsRead, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	reactions, err := h.service.ListReactions(r.Context(), id, claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReactionsResponse(id, reactions, claims.Subject))
}

func (h *Handler) addReaction(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	var req ReactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reaction, created, err := h.service.React(r.Context(), id, claims.Subject, req.Emoji)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, toReactionView(*reaction))
}

func (h *Handler) removeReaction(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	emoji := strings.TrimSpace(r.URL.Query().Get("emoji"))
	if emoji == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "emoji is required")
		return
	}
	if err := h.service.Unreact(r.Context(), id, claims.Subject, emoji); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) comments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		h.listComments(w, r, id)
	case http.MethodPost:
		h.addComment(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeGroupsRead, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), id, claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		items = append(items, toCommentView(c))
	}
	writeJSON(w, http.StatusOK, CommentsResponse{Items: items})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeGroupsWrite)
	if !ok {
		return
	}

	var req AddCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := h.service.AddComment(r.Context(), domain.AddCommentInput{
		GroupWorkoutID: id,
		UserID:         claims.Subject,
		ParentID:       req.ParentID,
		Body:           req.Body,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentView(*comment))
}

// pageParams reads the limit and cursor query parameters.
func pageParams(w http.ResponseWriter, r *http.Request) (*domain.Cursor, int, bool) {
	query := r.URL.Query()
	limit := defaultPageSize
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return nil, 0, false
	}
	return cursor, limit, true
}

// authorizeGet rejects non-GET methods before checking scopes.
func authorizeGet(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return nil, false
	}
	return authorize(w, r, scopes...)
}

// authorize requires claims carrying at least one of scopes.
func authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCorruptHistory):
		log.Errorf("stored data is corrupt: %s", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnknownPeriod),
		errors.Is(err, weekkey.ErrMalformedWeekKey):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrWorkoutNotFound),
		errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrGroupWorkoutNotFound),
		errors.Is(err, domain.ErrReactionNotFound),
		errors.Is(err, domain.ErrInvalidInviteCode):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNotGroupMember),
		errors.Is(err, domain.ErrNotWorkoutOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrEditWindowClosed):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		log.Errorf("request failed: %s", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("failed to encode response: %s", err)
	}
}
