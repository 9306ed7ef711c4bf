package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPost(t *testing.T, api *testAPI, token, content string) uint {
	t.Helper()
	res := api.call(t, http.MethodPost, "/api/posts", token, map[string]any{"content": content})
	require.Equal(t, fiber.StatusCreated, res.Status, "create post: %v", res.Body)
	return uint(res.Body["id"].(float64))
}

func feedIDs(t *testing.T, res apiResponse) []uint {
	t.Helper()
	require.Equal(t, fiber.StatusOK, res.Status, "feed: %v", res.Body)
	var ids []uint
	for _, raw := range res.Body["posts"].([]any) {
		ids = append(ids, uint(raw.(map[string]any)["id"].(float64)))
	}
	return ids
}

func TestFollowersOnlyPostVisibility(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	author := api.signup(t, "author")
	follower := api.signup(t, "follower")
	stranger := api.signup(t, "stranger")

	res := api.call(t, http.MethodPatch, "/api/users/me", author.AccessToken, map[string]any{
		"profile_visibility": "followers_only",
	})
	require.Equal(t, fiber.StatusOK, res.Status)
	postID := createPost(t, api, author.AccessToken, "for my followers")
	path := fmt.Sprintf("/api/posts/%d", postID)

	res = api.call(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", author.ID), follower.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", fiber.StatusNotFound},
		{"non-follower", stranger.AccessToken, fiber.StatusNotFound},
		{"follower", follower.AccessToken, fiber.StatusOK},
		{"author", author.AccessToken, fiber.StatusOK},
	}
	for _, tt := range tests {
		res := api.call(t, http.MethodGet, path, tt.token, nil)
		assert.Equal(t, tt.want, res.Status, tt.name)
		if tt.want == fiber.StatusOK {
			assert.Equal(t, "for my followers", res.Body["content"], tt.name)
		}
	}

	// The feed applies the same rule per post.
	assert.NotContains(t, feedIDs(t, api.call(t, http.MethodGet, "/api/posts", "", nil)), postID)
	assert.NotContains(t, feedIDs(t, api.call(t, http.MethodGet, "/api/posts", stranger.AccessToken, nil)), postID)
	assert.Contains(t, feedIDs(t, api.call(t, http.MethodGet, "/api/posts", follower.AccessToken, nil)), postID)

	// Comments of a hidden post are hidden too.
	res = api.call(t, http.MethodGet, path+"/comments", "", nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)

	// Unfollowing takes effect on the next request.
	res = api.call(t, http.MethodDelete, fmt.Sprintf("/api/users/%d/follow", author.ID), follower.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	res = api.call(t, http.MethodGet, path, follower.AccessToken, nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
}

func TestPrivatePostHiddenFromEveryoneButAuthor(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	author := api.signup(t, "author")
	fan := api.signup(t, "fan")

	res := api.call(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", author.ID), fan.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	res = api.call(t, http.MethodPut, "/api/users/me", author.AccessToken, map[string]any{"profile_visibility": "private"})
	require.Equal(t, fiber.StatusOK, res.Status)
	postID := createPost(t, api, author.AccessToken, "diary")

	res = api.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), fan.AccessToken, nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
	res = api.call(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), fan.AccessToken, nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
	res = api.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), author.AccessToken, nil)
	assert.Equal(t, fiber.StatusOK, res.Status)
}

func TestCreatePost_Validation(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	alice := api.signup(t, "alice")

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"empty", map[string]any{"content": "   "}, fiber.StatusBadRequest},
		{"bad category", map[string]any{"content": "hi", "category": "memes"}, fiber.StatusBadRequest},
		{"bad image url", map[string]any{"image_url": "not a url"}, fiber.StatusBadRequest},
		{"image only", map[string]any{"image_url": "https://cdn.example.com/a.png"}, fiber.StatusCreated},
		{"question", map[string]any{"content": "anyone?", "category": "question"}, fiber.StatusCreated},
	}
	for _, tt := range tests {
		res := api.call(t, http.MethodPost, "/api/posts", alice.AccessToken, tt.body)
		assert.Equal(t, tt.want, res.Status, tt.name)
	}

	res := api.call(t, http.MethodPost, "/api/posts", "", map[string]any{"content": "anon"})
	assert.Equal(t, fiber.StatusUnauthorized, res.Status)
}

func TestCreatePost_Response(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	alice := api.signup(t, "alice")

	res := api.call(t, http.MethodPost, "/api/posts", alice.AccessToken, map[string]any{"content": "hello world"})
	require.Equal(t, fiber.StatusCreated, res.Status)
	assert.Equal(t, "hello world", res.Body["content"])
	assert.Equal(t, "general", res.Body["category"])
	assert.EqualValues(t, 0, res.Body["like_count"])

	author := res.Body["author"].(map[string]any)
	assert.Equal(t, "alice", author["username"])
	assert.NotContains(t, author, "email")
}

func TestUpdateAndDeletePost_AuthorOnly(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	alice := api.signup(t, "alice")
	bob := api.signup(t, "bob")
	postID := createPost(t, api, alice.AccessToken, "first draft")
	path := fmt.Sprintf("/api/posts/%d", postID)

	res := api.call(t, http.MethodPut, path, bob.AccessToken, map[string]any{"content": "hijacked"})
	assert.Equal(t, fiber.StatusForbidden, res.Status)

	res = api.call(t, http.MethodPatch, path, alice.AccessToken, map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, res.Status)

	res = api.call(t, http.MethodPatch, path, alice.AccessToken, map[string]any{"content": "final", "category": "announcement"})
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "final", res.Body["content"])
	assert.Equal(t, "announcement", res.Body["category"])

	res = api.call(t, http.MethodDelete, path, bob.AccessToken, nil)
	assert.Equal(t, fiber.StatusForbidden, res.Status)

	res = api.call(t, http.MethodDelete, path, alice.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)

	res = api.call(t, http.MethodGet, path, alice.AccessToken, nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
}

func TestLikeUnlike(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	alice := api.signup(t, "alice")
	bob := api.signup(t, "bob")
	postID := createPost(t, api, alice.AccessToken, "like me")
	likePath := fmt.Sprintf("/api/posts/%d/like", postID)

	res := api.call(t, http.MethodPost, likePath, bob.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.EqualValues(t, 1, res.Body["like_count"])

	res = api.call(t, http.MethodPost, likePath, bob.AccessToken, nil)
	assert.Equal(t, fiber.StatusConflict, res.Status)

	res = api.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), bob.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, true, res.Body["is_liked"])

	res = api.call(t, http.MethodDelete, likePath, bob.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.EqualValues(t, 0, res.Body["like_count"])

	// Unlike is idempotent.
	res = api.call(t, http.MethodDelete, likePath, bob.AccessToken, nil)
	assert.Equal(t, fiber.StatusOK, res.Status)
	assert.EqualValues(t, 0, res.Body["like_count"])

	res = api.call(t, http.MethodPost, "/api/posts/999999/like", bob.AccessToken, nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
}

func TestGetPosts_Filters(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	alice := api.signup(t, "alice")
	bob := api.signup(t, "bob")

	general := createPost(t, api, alice.AccessToken, "plain update")
	res := api.call(t, http.MethodPost, "/api/posts", bob.AccessToken, map[string]any{"content": "who knows golang?", "category": "question"})
	require.Equal(t, fiber.StatusCreated, res.Status)
	question := uint(res.Body["id"].(float64))

	ids := feedIDs(t, api.call(t, http.MethodGet, "/api/posts?category=question", "", nil))
	assert.Equal(t, []uint{question}, ids)

	ids = feedIDs(t, api.call(t, http.MethodGet, fmt.Sprintf("/api/posts?author_id=%d", alice.ID), "", nil))
	assert.Equal(t, []uint{general}, ids)

	ids = feedIDs(t, api.call(t, http.MethodGet, "/api/posts?q=golang", "", nil))
	assert.Equal(t, []uint{question}, ids)

	res = api.call(t, http.MethodGet, "/api/posts?category=memes", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, res.Status)

	res = api.call(t, http.MethodGet, "/api/posts?following=true", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.Status)

	res = api.call(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", bob.ID), alice.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	ids = feedIDs(t, api.call(t, http.MethodGet, "/api/posts?following=true", alice.AccessToken, nil))
	assert.Equal(t, []uint{question}, ids)

	res = api.call(t, http.MethodGet, "/api/posts?limit=1", "", nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	page := res.Body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, page["limit"])
	assert.EqualValues(t, 2, page["total"])
	assert.Len(t, res.Body["posts"], 1)
}

func TestComments(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	alice := api.signup(t, "alice")
	bob := api.signup(t, "bob")
	postID := createPost(t, api, alice.AccessToken, "discuss")
	path := fmt.Sprintf("/api/posts/%d/comments", postID)

	res := api.call(t, http.MethodPost, path, bob.AccessToken, map[string]any{"content": "  "})
	assert.Equal(t, fiber.StatusBadRequest, res.Status)

	res = api.call(t, http.MethodPost, path, "", map[string]any{"content": "anon"})
	assert.Equal(t, fiber.StatusUnauthorized, res.Status)

	res = api.call(t, http.MethodPost, path, bob.AccessToken, map[string]any{"content": "first!"})
	require.Equal(t, fiber.StatusCreated, res.Status)
	comment := res.Body["comment"].(map[string]any)
	assert.Equal(t, "first!", comment["content"])

	res = api.call(t, http.MethodPost, path, alice.AccessToken, map[string]any{"content": "thanks"})
	require.Equal(t, fiber.StatusCreated, res.Status)

	res = api.call(t, http.MethodGet, path, "", nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	list := res.Body["comments"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "first!", list[0].(map[string]any)["content"])
	assert.EqualValues(t, 2, res.Body["pagination"].(map[string]any)["total"])

	res = api.call(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), "", nil)
	assert.EqualValues(t, 2, res.Body["comment_count"])

	res = api.call(t, http.MethodGet, "/api/posts/424242/comments", "", nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
}
