package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"socialconnect/internal/models"
	"socialconnect/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	post := &models.Post{AuthorID: alice.ID, Content: "hello", Category: models.CategoryQuestion, IsActive: true}
	require.NoError(t, repo.Create(ctx, post))
	require.NotZero(t, post.ID)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	require.NotNil(t, got.Author)
	assert.Equal(t, "alice", got.Author.Username)
	assert.Empty(t, got.Author.Email, "author projection omits private columns")
	assert.Empty(t, got.Author.PasswordHash)

	_, err = repo.GetByID(ctx, post.ID+100)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_LikeLifecycle(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice.ID, "like me")

	require.NoError(t, repo.Like(ctx, bob.ID, post.ID))
	err := repo.Like(ctx, bob.ID, post.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict), "duplicate like is a conflict")

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikeCount, "failed duplicate does not bump the counter")

	liked, err := repo.LikedPostIDs(ctx, bob.ID, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{post.ID}, liked)

	removed, err := repo.Unlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Unlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, removed, "unlike is idempotent")

	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikeCount)
}

func TestPostRepository_ListFilters(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	testutil.CreatePost(t, db, alice.ID, "Golang tips")
	q := testutil.CreatePost(t, db, bob.ID, "any questions?")
	require.NoError(t, repo.UpdateFields(ctx, q.ID, map[string]any{"category": models.CategoryQuestion}))
	gone := testutil.CreatePost(t, db, bob.ID, "removed")
	require.NoError(t, repo.SetActive(ctx, gone.ID, false))

	tests := []struct {
		name   string
		filter PostFilter
		want   int64
	}{
		{"active only", PostFilter{}, 2},
		{"include inactive", PostFilter{IncludeInactive: true}, 3},
		{"by category", PostFilter{Category: models.CategoryQuestion}, 1},
		{"by author", PostFilter{AuthorID: alice.ID}, 1},
		{"by author set", PostFilter{AuthorIDs: []uint{bob.ID}}, 1},
		{"empty author set", PostFilter{AuthorIDs: []uint{}}, 0},
		{"text query", PostFilter{Query: "golang"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Page = NewPage(0, 0)
			posts, total, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, posts, int(tt.want))
		})
	}
}

func TestPostRepository_ListVisibilityScope(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	pub := testutil.CreateUser(t, db, "pub")
	priv := testutil.CreateUser(t, db, "priv", testutil.WithVisibility(models.VisibilityPrivate))
	fo := testutil.CreateUser(t, db, "fo", testutil.WithVisibility(models.VisibilityFollowersOnly))
	fan := testutil.CreateUser(t, db, "fan")
	testutil.Follow(t, db, fan.ID, fo.ID)

	testutil.CreatePost(t, db, pub.ID, "public")
	testutil.CreatePost(t, db, priv.ID, "private")
	testutil.CreatePost(t, db, fo.ID, "followers")

	contents := func(scope *VisibilityScope) []string {
		posts, _, err := repo.List(ctx, PostFilter{Visibility: scope, Page: NewPage(0, 0)})
		require.NoError(t, err)
		out := make([]string, 0, len(posts))
		for _, p := range posts {
			out = append(out, p.Content)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"public"}, contents(&VisibilityScope{}))
	assert.ElementsMatch(t, []string{"public", "followers"}, contents(&VisibilityScope{ViewerID: fan.ID, Following: []uint{fo.ID}}))
	assert.ElementsMatch(t, []string{"public", "private"}, contents(&VisibilityScope{ViewerID: priv.ID}))
}

func TestPostRepository_List_DatabaseError(t *testing.T) {
	t.Parallel()
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts"`)).
		WillReturnError(errors.New("timeout"))

	_, _, err := repo.List(context.Background(), PostFilter{Page: NewPage(0, 0)})
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Like_RollsBackOnCounterFailure(t *testing.T) {
	t.Parallel()
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "likes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "like_count"`)).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := repo.Like(context.Background(), 1, 2)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}
