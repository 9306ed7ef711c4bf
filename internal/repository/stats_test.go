package repository

import (
	"context"
	"testing"
	"time"

	"socialconnect/internal/models"
	"socialconnect/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRepository_Overview(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewStatsRepository(db)
	users := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	require.NoError(t, users.SetActive(ctx, carol.ID, false))
	require.NoError(t, users.UpdateLastLogin(ctx, alice.ID, time.Now()))

	post := testutil.CreatePost(t, db, alice.ID, "hi")
	testutil.Follow(t, db, bob.ID, alice.ID)
	require.NoError(t, NewPostRepository(db).Like(ctx, bob.ID, post.ID))
	require.NoError(t, NewCommentRepository(db).Create(ctx, &models.Comment{PostID: post.ID, UserID: bob.ID, Content: "yo"}))

	stats, err := repo.Overview(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{Total: 3, Active: 2, ActiveToday: 1}, stats.Users)
	assert.Equal(t, models.PostStats{Total: 1, CreatedToday: 1}, stats.Posts)
	assert.Equal(t, models.EngagementStats{TotalLikes: 1, TotalComments: 1, TotalFollows: 1}, stats.Engagement)

	activity, err := repo.UserActivity(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserActivity{Comments: 1, Likes: 1}, activity)
}
