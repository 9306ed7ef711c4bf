package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"socialconnect/internal/models"
	"socialconnect/internal/observability"

	"gorm.io/gorm"
)

// RefreshTokenStore persists issued refresh tokens. Revocation is one-way:
// every transition is a conditional update from active to revoked.
type RefreshTokenStore interface {
	Insert(ctx context.Context, token string, userID uint, expiresAt time.Time) error
	FindActive(ctx context.Context, token string) (*models.RefreshToken, error)
	BlacklistAll(ctx context.Context, userID uint) (int64, error)
	BlacklistOne(ctx context.Context, token string) (bool, error)
	PruneExpired(ctx context.Context, before time.Time) (int64, error)
}

type refreshTokenStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRefreshTokenStore returns a RefreshTokenStore backed by db.
func NewRefreshTokenStore(db *gorm.DB) RefreshTokenStore {
	return &refreshTokenStore{db: db, now: time.Now}
}

// HashToken returns the hex SHA-256 digest under which a token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *refreshTokenStore) Insert(ctx context.Context, token string, userID uint, expiresAt time.Time) error {
	defer observability.TrackQuery("insert", "refresh_tokens")()
	rec := &models.RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt.UTC(),
		Status:    models.TokenActive,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Refresh token already stored")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// FindActive returns nil, nil when the token is unknown, revoked or expired.
func (s *refreshTokenStore) FindActive(ctx context.Context, token string) (*models.RefreshToken, error) {
	defer observability.TrackQuery("select", "refresh_tokens")()
	var rec models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND status = ?", HashToken(token), models.TokenActive).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !rec.Usable(s.now()) {
		return nil, nil
	}
	return &rec, nil
}

func (s *refreshTokenStore) BlacklistAll(ctx context.Context, userID uint) (int64, error) {
	n, err := s.revoke(ctx, s.db.Where("user_id = ?", userID))
	if err == nil {
		observability.RecordRevocations("all", n)
	}
	return n, err
}

func (s *refreshTokenStore) BlacklistOne(ctx context.Context, token string) (bool, error) {
	n, err := s.revoke(ctx, s.db.Where("token_hash = ?", HashToken(token)))
	if err == nil {
		observability.RecordRevocations("single", n)
	}
	return n > 0, err
}

func (s *refreshTokenStore) revoke(ctx context.Context, scope *gorm.DB) (int64, error) {
	defer observability.TrackQuery("update", "refresh_tokens")()
	now := s.now().UTC()
	res := scope.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("status = ?", models.TokenActive).
		Updates(map[string]any{"status": models.TokenRevoked, "revoked_at": now})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// PruneExpired deletes records that expired before the cutoff. Revoked but
// unexpired records are kept so a replayed token still finds its revocation.
func (s *refreshTokenStore) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	defer observability.TrackQuery("delete", "refresh_tokens")()
	res := s.db.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
