package repository

import (
	"context"
	"testing"

	"socialconnect/internal/models"
	"socialconnect/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_CreateAndList(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewCommentRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice.ID, "discuss")

	for _, text := range []string{"first", "second"} {
		require.NoError(t, repo.Create(ctx, &models.Comment{PostID: post.ID, UserID: bob.ID, Content: text}))
	}

	comments, total, err := repo.ListByPost(ctx, post.ID, NewPage(0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	require.NotNil(t, comments[0].User)
	assert.Equal(t, "bob", comments[0].User.Username)

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CommentCount)
}
