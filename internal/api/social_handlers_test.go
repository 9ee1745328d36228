package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ibblog/internal/auth"
)

func (ts *testServer) feed(userID, groupID, query string) *httptest.ResponseRecorder {
	ts.t.Helper()
	return ts.do(http.MethodGet, "/v1/groups/"+groupID+"/workouts"+query, userID, nil)
}

func TestListMyGroups(t *testing.T) {
	ts := newTestServer(t)

	first := ts.createGroup("alice", CreateGroupRequest{Name: "Early Birds"})
	ts.now = ts.now.Add(time.Hour)
	second := ts.createGroup("bob", CreateGroupRequest{Name: "Night Owls"})
	ts.now = ts.now.Add(time.Hour)
	require.Equal(t, http.StatusOK, ts.join("alice", second.InviteCode).Code)

	rr := ts.do(http.MethodGet, "/v1/groups", "alice", nil, auth.ScopeGroupsRead)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	groups := decode[GroupsResponse](t, rr).Items
	require.Len(t, groups, 2)
	assert.Equal(t, second.GroupID, groups[0].GroupID)
	assert.Equal(t, first.GroupID, groups[1].GroupID)

	rr = ts.do(http.MethodGet, "/v1/groups", "carol", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items":[]}`, rr.Body.String())

	rr = ts.do(http.MethodPut, "/v1/groups", "alice", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestGroupFeedPaginates(t *testing.T) {
	ts := newTestServer(t)
	group := ts.createGroup("alice", CreateGroupRequest{Name: "Crew"})
	require.Equal(t, http.StatusOK, ts.join("bob", group.InviteCode).Code)

	ts.logWorkout("alice", 45, group.GroupID)
	ts.now = ts.now.Add(time.Minute)
	ts.logWorkout("bob", 15, group.GroupID)
	ts.now = ts.now.Add(time.Minute)
	ts.logWorkout("alice", 60, group.GroupID)

	rr := ts.feed("bob", group.GroupID, "?limit=2")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	page := decode[GroupFeedResponse](t, rr)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, 60, page.Items[0].DurationMinutes)
	assert.Equal(t, "bob", page.Items[1].Username)
	assert.Equal(t, "Bob", page.Items[1].DisplayName)
	assert.False(t, page.Items[1].IsQualified)
	assert.Equal(t, "2024-W10", page.Items[1].WeekKey)

	rr = ts.feed("bob", group.GroupID, "?limit=2&cursor="+page.NextCursor)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rest := decode[GroupFeedResponse](t, rr)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)
	assert.Equal(t, 45, rest.Items[0].DurationMinutes)

	assert.Equal(t, http.StatusBadRequest, ts.feed("bob", group.GroupID, "?cursor=bm9wZQ").Code)
	assert.Equal(t, http.StatusForbidden, ts.feed("carol", group.GroupID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.feed("alice", "missing", "").Code)
}

func (ts *testServer) firstLinkID(userID, groupID string) string {
	ts.t.Helper()
	rr := ts.feed(userID, groupID, "")
	require.Equal(ts.t, http.StatusOK, rr.Code, rr.Body.String())
	items := decode[GroupFeedResponse](ts.t, rr).Items
	require.NotEmpty(ts.t, items)
	return items[0].GroupWorkoutID
}

func TestReactionsLifecycle(t *testing.T) {
	ts := newTestServer(t)
	group := ts.createGroup("alice", CreateGroupRequest{Name: "Crew"})
	require.Equal(t, http.StatusOK, ts.join("bob", group.InviteCode).Code)
	ts.logWorkout("alice", 30, group.GroupID)
	linkID := ts.firstLinkID("alice", group.GroupID)
	path := "/v1/group-workouts/" + linkID + "/reactions"

	rr := ts.do(http.MethodPost, path, "bob", ReactionRequest{Emoji: "🔥"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[ReactionView](t, rr)
	assert.Equal(t, "bob", created.Username)

	rr = ts.do(http.MethodPost, path, "bob", ReactionRequest{Emoji: "🔥"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ReactionID, decode[ReactionView](t, rr).ReactionID)

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, path, "alice", ReactionRequest{Emoji: "🔥"}).Code)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, path, "alice", ReactionRequest{Emoji: "💪"}).Code)

	rr = ts.do(http.MethodGet, path, "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[ReactionsResponse](t, rr)
	assert.Len(t, list.Items, 3)
	assert.Equal(t, []ReactionCountView{
		{Emoji: "💪", Count: 1},
		{Emoji: "🔥", Count: 2, ViewerReacted: true},
	}, list.Counts)

	rr = ts.do(http.MethodDelete, path+"?emoji="+url.QueryEscape("🔥"), "bob", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.do(http.MethodDelete, path+"?emoji="+url.QueryEscape("🔥"), "bob", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(http.MethodDelete, path, "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPost, path, "bob", ReactionRequest{Emoji: "🙂"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = ts.do(http.MethodPost, path, "carol", ReactionRequest{Emoji: "🔥"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(http.MethodPost, path, "bob", ReactionRequest{Emoji: "🔥"}, auth.ScopeGroupsRead)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = ts.do(http.MethodPatch, path, "bob", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCommentsLifecycle(t *testing.T) {
	ts := newTestServer(t)
	group := ts.createGroup("alice", CreateGroupRequest{Name: "Crew"})
	require.Equal(t, http.StatusOK, ts.join("bob", group.InviteCode).Code)
	ts.logWorkout("alice", 30, group.GroupID)
	linkID := ts.firstLinkID("alice", group.GroupID)
	path := "/v1/group-workouts/" + linkID + "/comments"

	rr := ts.do(http.MethodPost, path, "bob", AddCommentRequest{Body: " strong work "})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	top := decode[CommentView](t, rr)
	assert.Equal(t, "strong work", top.Body)
	assert.Equal(t, "Bob", top.Author)

	ts.now = ts.now.Add(time.Minute)
	rr = ts.do(http.MethodPost, path, "alice", AddCommentRequest{Body: "thanks", ParentID: top.CommentID})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reply := decode[CommentView](t, rr)
	assert.Equal(t, top.CommentID, reply.ParentID)

	rr = ts.do(http.MethodGet, path, "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	comments := decode[CommentsResponse](t, rr).Items
	require.Len(t, comments, 2)
	assert.Equal(t, top.CommentID, comments[0].CommentID)
	assert.Equal(t, reply.CommentID, comments[1].CommentID)

	rr = ts.do(http.MethodPost, path, "bob", AddCommentRequest{Body: "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = ts.do(http.MethodPost, path, "bob", AddCommentRequest{Body: "hi", ParentID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = ts.do(http.MethodGet, path, "carol", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(http.MethodGet, "/v1/group-workouts/missing/comments", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
