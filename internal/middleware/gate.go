// Package middleware provides request-scoped HTTP middleware for the API.
package middleware

import (
	"context"
	"strings"

	"socialconnect/internal/auth"
	"socialconnect/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the gate.
const (
	LocalsUserID = "userID"
	LocalsClaims = "claims"
)

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// Gate centralizes the authentication variants used by route groups.
type Gate struct {
	tokens AccessVerifier
}

// NewGate returns a Gate backed by tokens.
func NewGate(tokens AccessVerifier) *Gate {
	return &Gate{tokens: tokens}
}

// RequireAuth rejects requests without a valid access token with 401.
func (g *Gate) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ClaimsFrom(c); ok {
			return c.Next()
		}
		claims, err := g.verify(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		attach(c, claims)
		return c.Next()
	}
}

// RequireAdmin rejects unauthenticated requests with 401 and non-admins with 403.
func (g *Gate) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			var err error
			claims, err = g.verify(c)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized, err)
			}
			attach(c, claims)
		}
		if !claims.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Optional attaches claims when a valid token is present and never rejects.
func (g *Gate) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		g.Authenticate(c)
		return c.Next()
	}
}

// Authenticate is the non-rejecting variant: it returns the caller's claims
// when a valid token is present. Invalid tokens are treated as anonymous.
func (g *Gate) Authenticate(c *fiber.Ctx) (*auth.Claims, bool) {
	if claims, ok := ClaimsFrom(c); ok {
		return claims, true
	}
	if bearerToken(c) == "" {
		return nil, false
	}
	claims, err := g.verify(c)
	if err != nil {
		return nil, false
	}
	attach(c, claims)
	return claims, true
}

func (g *Gate) verify(c *fiber.Ctx) (*auth.Claims, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, models.NewUnauthorizedError("Authorization header required")
	}
	token := bearerToken(c)
	if token == "" {
		return nil, models.NewUnauthorizedError("Invalid authorization header format")
	}
	claims, err := g.tokens.VerifyAccess(token)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func attach(c *fiber.Ctx, claims *auth.Claims) {
	userID, _ := claims.UserID()
	c.Locals(LocalsClaims, claims)
	c.Locals(LocalsUserID, userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// ClaimsFrom returns the claims attached by the gate.
func ClaimsFrom(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(LocalsClaims).(*auth.Claims)
	return claims, ok && claims != nil
}

// UserIDFrom returns the authenticated user ID, or false for anonymous requests.
func UserIDFrom(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalsUserID).(uint)
	return id, ok && id != 0
}
