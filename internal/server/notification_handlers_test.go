package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	alice := api.signup(t, "alice")
	bob := api.signup(t, "bob")
	postID := createPost(t, api, alice.AccessToken, "ping")

	require.Equal(t, fiber.StatusOK, api.call(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", alice.ID), bob.AccessToken, nil).Status)
	require.Equal(t, fiber.StatusOK, api.call(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), bob.AccessToken, nil).Status)
	require.Equal(t, fiber.StatusCreated, api.call(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), bob.AccessToken, map[string]any{"content": "pong"}).Status)
	// Self-actions are not notified.
	require.Equal(t, fiber.StatusCreated, api.call(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), alice.AccessToken, map[string]any{"content": "me too"}).Status)
	// Mentions are.
	createPost(t, api, bob.AccessToken, "hey @alice look")

	res := api.call(t, http.MethodGet, "/api/notifications", alice.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	items := res.Body["notifications"].([]any)
	require.Len(t, items, 4)
	assert.EqualValues(t, 4, res.Body["unread_count"])

	var types []string
	for _, raw := range items {
		n := raw.(map[string]any)
		types = append(types, n["type"].(string))
	}
	assert.ElementsMatch(t, []string{"follow", "like", "comment", "mention"}, types)

	first := uint(items[0].(map[string]any)["id"].(float64))

	// Notifications of other users are not found.
	res = api.call(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first), bob.AccessToken, nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)

	res = api.call(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first), alice.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)

	res = api.call(t, http.MethodGet, "/api/notifications?unread_only=true", alice.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Len(t, res.Body["notifications"], 3)
	assert.EqualValues(t, 3, res.Body["unread_count"])

	res = api.call(t, http.MethodPost, "/api/notifications/mark-all-read", alice.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.EqualValues(t, 3, res.Body["updated"])

	res = api.call(t, http.MethodGet, "/api/notifications", alice.AccessToken, nil)
	assert.EqualValues(t, 0, res.Body["unread_count"])

	assert.Equal(t, fiber.StatusUnauthorized, api.call(t, http.MethodGet, "/api/notifications", "", nil).Status)
}
