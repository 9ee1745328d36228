package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ibblog/internal/domain"
)

func TestListWorkoutsByUserPaginates(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	base := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		repo.PutWorkout(domain.Workout{ID: id, UserID: "alice", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	repo.PutWorkout(domain.Workout{ID: "other", UserID: "bob", CreatedAt: base})

	page, next, err := repo.ListWorkoutsByUser(ctx, "alice", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)
	require.NotNil(t, next)

	page, next, err = repo.ListWorkoutsByUser(ctx, "alice", next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)
	assert.Nil(t, next)
}

func TestMembersJoinProfiles(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateGroup(ctx, domain.Group{ID: "g1", InviteCode: "ABC"}, domain.Member{UserID: "alice", Role: domain.RoleAdmin}))
	require.NoError(t, repo.AddMember(ctx, "g1", domain.Member{UserID: "bob", Role: domain.RoleMember}))
	assert.ErrorIs(t, repo.AddMember(ctx, "g1", domain.Member{UserID: "bob"}), domain.ErrAlreadyMember)
	repo.SetProfile("alice", "alice", "Alice")

	members, err := repo.ListMembers(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].DisplayName)
	assert.Equal(t, domain.UnknownUsername, members[1].Label())

	g, err := repo.GetGroupByInviteCode(ctx, "ABC")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "g1", g.ID)
}

func TestQualifiedUserIDsAndLinkActivity(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	base := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)
	repo.PutWorkout(domain.Workout{ID: "w1", UserID: "alice", DurationMinutes: 40, CreatedAt: base, Links: []domain.GroupWorkout{
		{GroupID: "g1", WeekKey: "2024-W10", IsQualified: true, CreatedAt: base},
		{GroupID: "g2", WeekKey: "2024-W10", IsQualified: true, CreatedAt: base},
	}})
	repo.PutWorkout(domain.Workout{ID: "w2", UserID: "bob", DurationMinutes: 10, CreatedAt: base.Add(time.Hour), Links: []domain.GroupWorkout{
		{GroupID: "g1", WeekKey: "2024-W10", IsQualified: false, CreatedAt: base.Add(time.Hour)},
	}})

	ids, err := repo.ListQualifiedUserIDs(ctx, "g1", "2024-W10")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)

	activity, err := repo.ListLinkActivity(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "alice", activity[0].UserID)
	assert.Equal(t, "bob", activity[1].UserID)
}
