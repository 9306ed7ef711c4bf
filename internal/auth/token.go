package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer is the iss claim of every token minted by this service.
	Issuer = "socialconnect-api"
	// Audience is the aud claim of every token minted by this service.
	Audience = "socialconnect-client"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and wrong token types.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for well-formed tokens past their exp.
	ErrExpiredToken = errors.New("token expired")
)

// Identity is the user data embedded in a token.
type Identity struct {
	UserID   uint
	Email    string
	Username string
	IsAdmin  bool
}

// Claims is the JWT payload shared by access and refresh tokens.
type Claims struct {
	Email    string    `json:"email"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
	Type     TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// Identity returns the user data carried by the claims.
func (c *Claims) Identity() Identity {
	id, _ := c.UserID()
	return Identity{UserID: id, Email: c.Email, Username: c.Username, IsAdmin: c.IsAdmin}
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService mints and verifies HS256 JWTs.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService builds a TokenService. A missing refresh secret falls back to the access secret.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.AccessSecret
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(refresh),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// IssueAccess mints a short-lived access token.
func (s *TokenService) IssueAccess(id Identity) (string, time.Time, error) {
	return s.issue(id, TokenTypeAccess, s.accessTTL, s.accessSecret)
}

// IssueRefresh mints a refresh token. Callers persist it in the refresh token store.
func (s *TokenService) IssueRefresh(id Identity) (string, time.Time, error) {
	return s.issue(id, TokenTypeRefresh, s.refreshTTL, s.refreshSecret)
}

// VerifyAccess validates an access token and returns its claims.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, TokenTypeAccess, s.accessSecret)
}

// VerifyRefresh validates a refresh token's signature and expiry. It does not
// consult the store; callers must check revocation separately.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, TokenTypeRefresh, s.refreshSecret)
}

func (s *TokenService) issue(id Identity, typ TokenType, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if id.UserID == 0 {
		return "", time.Time{}, fmt.Errorf("cannot issue token without a subject")
	}
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email:    id.Email,
		Username: id.Username,
		IsAdmin:  id.IsAdmin,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateJTI(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *TokenService) verify(token string, typ TokenType, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Type != typ {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// generateJTI creates a unique token ID so two tokens minted in the same second differ.
func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String())
}
