package models

import "time"

// TokenStatus is the lifecycle state of a refresh token. Revocation is terminal.
type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenRevoked TokenStatus = "revoked"
)

// RefreshToken is the server-side record of an issued refresh token. Only a
// digest of the token is stored.
type RefreshToken struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	UserID    uint        `gorm:"not null;index" json:"user_id"`
	TokenHash string      `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time   `gorm:"not null;index" json:"expires_at"`
	Status    TokenStatus `gorm:"type:varchar(10);not null;index" json:"status"`
	RevokedAt *time.Time  `json:"revoked_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Usable reports whether the token may still mint access tokens at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.Status == TokenActive && now.Before(t.ExpiresAt)
}
