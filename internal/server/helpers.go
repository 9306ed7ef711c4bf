package server

import (
	"errors"
	"strings"
	"unicode"

	"socialconnect/internal/middleware"
	"socialconnect/internal/models"
	"socialconnect/internal/policy"
	"socialconnect/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parsePage extracts limit and offset query parameters, clamped by repository.NewPage.
func parsePage(c *fiber.Ctx) repository.Page {
	return repository.NewPage(c.QueryInt("limit", repository.DefaultLimit), c.QueryInt("offset", 0))
}

// pagination renders the window of a list response.
func pagination(page repository.Page, total int64) models.Pagination {
	return models.Pagination{Limit: page.Limit, Offset: page.Offset, Total: total}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseBody decodes the JSON body into dest.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// viewerFrom returns the requester as seen by the visibility policy. Requests
// that passed no gate, or an optional gate without a token, are anonymous.
func viewerFrom(c *fiber.Ctx) policy.Viewer {
	if id, ok := middleware.UserIDFrom(c); ok {
		return policy.User(id)
	}
	return policy.Anonymous
}

// currentUserID returns the authenticated user. Routes behind RequireAuth always have one.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := middleware.UserIDFrom(c)
	return id
}

// parseBoolQuery reads an optional boolean query parameter. Absent or
// unparseable values yield nil.
func parseBoolQuery(c *fiber.Ctx, key string) *bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "true", "1", "yes":
		v := true
		return &v
	case "false", "0", "no":
		v := false
		return &v
	}
	return nil
}
