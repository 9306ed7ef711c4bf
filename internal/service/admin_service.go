package service

import (
	"context"
	"crypto/subtle"
	"time"

	"socialconnect/internal/cache"
	"socialconnect/internal/featureflags"
	"socialconnect/internal/models"
	"socialconnect/internal/observability"
	"socialconnect/internal/repository"
)

// AdminService implements the moderation console.
type AdminService struct {
	users       repository.UserRepository
	posts       repository.PostRepository
	stats       repository.StatsRepository
	refresh     repository.RefreshTokenStore
	flags       *featureflags.Manager
	adminSecret string
	now         func() time.Time
}

// AdminDeps wires an AdminService.
type AdminDeps struct {
	Users         repository.UserRepository
	Posts         repository.PostRepository
	Stats         repository.StatsRepository
	RefreshTokens repository.RefreshTokenStore
	Flags         *featureflags.Manager
	// AdminSecret gates POST /admin/provision; empty disables provisioning.
	AdminSecret string
}

// NewAdminService returns an AdminService.
func NewAdminService(d AdminDeps) *AdminService {
	return &AdminService{
		users:       d.Users,
		posts:       d.Posts,
		stats:       d.Stats,
		refresh:     d.RefreshTokens,
		flags:       d.Flags,
		adminSecret: d.AdminSecret,
		now:         time.Now,
	}
}

// Stats returns the dashboard counters, cached for cache.AdminStatsTTL.
func (s *AdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	var stats models.AdminStats
	err := cache.Aside(ctx, cache.AdminStatsKey, &stats, cache.AdminStatsTTL, func() error {
		now := s.now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		fresh, err := s.stats.Overview(ctx, startOfDay)
		if err != nil {
			return err
		}
		stats = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListUsers lists all users, filtered by status ("", active, inactive) and search.
func (s *AdminService) ListUsers(ctx context.Context, search, status string, page repository.Page) ([]models.User, int64, error) {
	st := repository.UserStatus(status)
	switch st {
	case repository.UserStatusAny, repository.UserStatusActive, repository.UserStatusInactive:
	default:
		return nil, 0, models.NewValidationError("status must be active or inactive")
	}
	return s.users.List(ctx, repository.UserFilter{Search: search, Status: st, Page: page})
}

// AdminUserDetail is a user with moderation counters.
type AdminUserDetail struct {
	*models.User
	CommentsCount int64 `json:"comments_count"`
	LikesCount    int64 `json:"likes_count"`
}

// GetUser returns a user with social and activity counters, regardless of status.
func (s *AdminService) GetUser(ctx context.Context, id uint) (*AdminUserDetail, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.users.Counts(ctx, id)
	if err != nil {
		return nil, err
	}
	user.ApplyCounts(counts)
	activity, err := s.stats.UserActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AdminUserDetail{User: user, CommentsCount: activity.Comments, LikesCount: activity.Likes}, nil
}

// Deactivate disables an account and revokes all of its refresh tokens.
// Access tokens already issued stay valid until they expire.
func (s *AdminService) Deactivate(ctx context.Context, adminID, targetID uint) (int64, error) {
	if adminID == targetID {
		return 0, models.NewValidationError("You cannot deactivate your own account")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return 0, err
	}
	if err := s.users.SetActive(ctx, targetID, false); err != nil {
		return 0, err
	}
	revoked, err := s.refresh.BlacklistAll(ctx, targetID)
	if err != nil {
		return 0, err
	}
	cache.InvalidateUser(ctx, targetID)
	observability.LogSecurityEvent(ctx, "user_deactivated", targetID, map[string]any{
		"admin_id":       adminID,
		"tokens_revoked": revoked,
	})
	return revoked, nil
}

// Activate re-enables an account. Revoked refresh tokens stay revoked.
func (s *AdminService) Activate(ctx context.Context, adminID, targetID uint) error {
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}
	if err := s.users.SetActive(ctx, targetID, true); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, targetID)
	observability.LogSecurityEvent(ctx, "user_activated", targetID, map[string]any{"admin_id": adminID})
	return nil
}

// ListPosts lists posts for moderation, including deactivated ones on request.
func (s *AdminService) ListPosts(ctx context.Context, includeInactive bool, page repository.Page) ([]*models.Post, int64, error) {
	return s.posts.List(ctx, repository.PostFilter{IncludeInactive: includeInactive, Page: page})
}

// DeletePost deactivates any post.
func (s *AdminService) DeletePost(ctx context.Context, adminID, postID uint) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.posts.SetActive(ctx, post.ID, false); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, post.AuthorID)
	observability.LogSecurityEvent(ctx, "post_removed", post.AuthorID, map[string]any{"admin_id": adminID, "post_id": post.ID})
	return nil
}

// FeatureFlags reports the configured flags as evaluated for the admin.
func (s *AdminService) FeatureFlags(adminID uint) []featureflags.Flag {
	return s.flags.List(adminID)
}

// Provision grants admin rights to userID when secret matches the configured key.
func (s *AdminService) Provision(ctx context.Context, userID uint, secret string) (*models.User, error) {
	if s.adminSecret == "" {
		return nil, models.NewForbiddenError("Admin provisioning is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.adminSecret)) != 1 {
		observability.LogSecurityEvent(ctx, "admin_provision_denied", userID, nil)
		return nil, models.NewForbiddenError("Invalid secret key")
	}
	return s.SetAdmin(ctx, userID, true)
}

// SetAdmin grants or removes admin rights. The change reaches access tokens
// issued after it; existing access tokens keep their claim until expiry.
func (s *AdminService) SetAdmin(ctx context.Context, userID uint, admin bool) (*models.User, error) {
	if err := s.users.SetAdmin(ctx, userID, admin); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, userID)
	observability.LogSecurityEvent(ctx, "admin_role_changed", userID, map[string]any{"is_admin": admin})
	return s.users.GetByID(ctx, userID)
}

// ListAdmins returns every admin account.
func (s *AdminService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.users.ListAdmins(ctx)
}

// PruneTokens deletes refresh-token records that expired before now.
func (s *AdminService) PruneTokens(ctx context.Context) (int64, error) {
	return s.refresh.PruneExpired(ctx, s.now())
}
