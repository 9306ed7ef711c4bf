package service

import (
	"context"
	"testing"

	"socialconnect/internal/models"
	"socialconnect/internal/policy"
	"socialconnect/internal/repository"
	"socialconnect/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserService_ProfileVisibility(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, "")
	ctx := context.Background()

	owner := map[models.Visibility]*models.User{
		models.VisibilityPublic:        testutil.CreateUser(t, e.db, "pub_owner"),
		models.VisibilityPrivate:       testutil.CreateUser(t, e.db, "priv_owner", testutil.WithVisibility(models.VisibilityPrivate)),
		models.VisibilityFollowersOnly: testutil.CreateUser(t, e.db, "fo_owner", testutil.WithVisibility(models.VisibilityFollowersOnly)),
	}
	follower := testutil.CreateUser(t, e.db, "follower")
	stranger := testutil.CreateUser(t, e.db, "stranger")
	for _, u := range owner {
		testutil.Follow(t, e.db, follower.ID, u.ID)
	}

	tests := []struct {
		name       string
		visibility models.Visibility
		viewer     func(owner *models.User) policy.Viewer
		wantErr    string
	}{
		{"public anonymous", models.VisibilityPublic, func(*models.User) policy.Viewer { return policy.Anonymous }, ""},
		{"public stranger", models.VisibilityPublic, func(*models.User) policy.Viewer { return policy.User(stranger.ID) }, ""},
		{"private owner", models.VisibilityPrivate, func(o *models.User) policy.Viewer { return policy.User(o.ID) }, ""},
		{"private follower", models.VisibilityPrivate, func(*models.User) policy.Viewer { return policy.User(follower.ID) }, models.CodeForbidden},
		{"private anonymous", models.VisibilityPrivate, func(*models.User) policy.Viewer { return policy.Anonymous }, models.CodeForbidden},
		{"followers_only follower", models.VisibilityFollowersOnly, func(*models.User) policy.Viewer { return policy.User(follower.ID) }, ""},
		{"followers_only stranger", models.VisibilityFollowersOnly, func(*models.User) policy.Viewer { return policy.User(stranger.ID) }, models.CodeForbidden},
		{"followers_only anonymous", models.VisibilityFollowersOnly, func(*models.User) policy.Viewer { return policy.Anonymous }, models.CodeForbidden},
		{"followers_only owner", models.VisibilityFollowersOnly, func(o *models.User) policy.Viewer { return policy.User(o.ID) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := owner[tt.visibility]
			got, err := e.user.Profile(ctx, tt.viewer(o), o.ID)
			if tt.wantErr != "" {
				assertCode(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, o.ID, got.ID)
		})
	}
}

func TestUserService_ProfileHidesPrivateFields(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, "")
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	testutil.Follow(t, e.db, bob.ID, alice.ID)
	testutil.CreatePost(t, e.db, alice.ID, "hello")

	own, err := e.user.Profile(ctx, policy.User(alice.ID), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", own.Email)
	assert.Nil(t, own.IsFollowing)
	assert.EqualValues(t, 1, own.FollowersCount)
	assert.EqualValues(t, 1, own.PostsCount)

	seen, err := e.user.Profile(ctx, policy.User(bob.ID), alice.ID)
	require.NoError(t, err)
	assert.Empty(t, seen.Email)
	require.NotNil(t, seen.IsFollowing)
	assert.True(t, *seen.IsFollowing)

	anon, err := e.user.Profile(ctx, policy.Anonymous, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, anon.IsFollowing)
}

func TestUserService_ProfileInactive(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, "")
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	require.NoError(t, e.users.SetActive(ctx, alice.ID, false))

	_, err := e.user.Profile(ctx, policy.Anonymous, alice.ID)
	assertCode(t, err, models.CodeNotFound)

	_, err = e.user.Profile(ctx, policy.Anonymous, 9999)
	assertCode(t, err, models.CodeNotFound)
}

func TestUserService_Follow(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, "")
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	ghost := testutil.CreateUser(t, e.db, "ghost")
	require.NoError(t, e.users.SetActive(ctx, ghost.ID, false))

	assertCode(t, e.user.Follow(ctx, alice.ID, alice.ID), models.CodeValidation)
	assertCode(t, e.user.Follow(ctx, alice.ID, 9999), models.CodeNotFound)
	assertCode(t, e.user.Follow(ctx, alice.ID, ghost.ID), models.CodeNotFound)

	require.NoError(t, e.user.Follow(ctx, alice.ID, bob.ID))
	assertCode(t, e.user.Follow(ctx, alice.ID, bob.ID), models.CodeConflict)

	ok, err := e.follows.Exists(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	sent := e.publisher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, bob.ID, sent[0].UserID)
	assert.Equal(t, models.NotificationFollow, sent[0].Type)

	require.NoError(t, e.user.Unfollow(ctx, alice.ID, bob.ID))
	require.NoError(t, e.user.Unfollow(ctx, alice.ID, bob.ID), "unfollow is idempotent")
	assertCode(t, e.user.Unfollow(ctx, alice.ID, alice.ID), models.CodeValidation)
	assertCode(t, e.user.Unfollow(ctx, alice.ID, 9999), models.CodeNotFound)

	ok, err = e.follows.Exists(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserService_FollowersRespectVisibility(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, "")
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice", testutil.WithVisibility(models.VisibilityPrivate))
	bob := testutil.CreateUser(t, e.db, "bob")
	testutil.Follow(t, e.db, bob.ID, alice.ID)
	page := repository.NewPage(0, 0)

	_, _, err := e.user.Followers(ctx, policy.User(bob.ID), alice.ID, page)
	assertCode(t, err, models.CodeForbidden)

	users, total, err := e.user.Followers(ctx, policy.User(alice.ID), alice.ID, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)

	users, total, err = e.user.Following(ctx, policy.Anonymous, bob.ID, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, alice.ID, users[0].ID)
}

func TestUserService_UpdateMe(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, "")
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	testutil.CreateUser(t, e.db, "bob")

	tests := []struct {
		name string
		in   UpdateProfileInput
		code string
	}{
		{"empty", UpdateProfileInput{}, models.CodeValidation},
		{"bad visibility", UpdateProfileInput{ProfileVisibility: strPtr("friends")}, models.CodeValidation},
		{"bad username", UpdateProfileInput{Username: strPtr("_bad")}, models.CodeValidation},
		{"bad website", UpdateProfileInput{Website: strPtr("ftp://example.com")}, models.CodeValidation},
		{"taken username", UpdateProfileInput{Username: strPtr("bob")}, models.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.UserID = alice.ID
			_, err := e.user.UpdateMe(ctx, tt.in)
			assertCode(t, err, tt.code)
		})
	}

	got, err := e.user.UpdateMe(ctx, UpdateProfileInput{
		UserID:            alice.ID,
		Bio:               strPtr("  Gopher  "),
		Website:           strPtr("https://alice.dev"),
		ProfileVisibility: strPtr("followers_only"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Gopher", got.Bio)
	assert.Equal(t, "https://alice.dev", got.Website)
	assert.Equal(t, models.VisibilityFollowersOnly, got.ProfileVisibility)
	assert.Equal(t, "alice", got.Username)
}

func TestUserService_List(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, "")
	ctx := context.Background()
	testutil.CreateUser(t, e.db, "alice")
	testutil.CreateUser(t, e.db, "albert")
	gone := testutil.CreateUser(t, e.db, "alfred")
	require.NoError(t, e.users.SetActive(ctx, gone.ID, false))

	users, total, err := e.user.List(ctx, "al", repository.NewPage(0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, u := range users {
		assert.Empty(t, u.Email)
		assert.NotEqual(t, "alfred", u.Username)
	}
}
