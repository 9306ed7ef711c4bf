package service

import (
	"context"
	"strings"

	"socialconnect/internal/cache"
	"socialconnect/internal/models"
	"socialconnect/internal/observability"
	"socialconnect/internal/policy"
	"socialconnect/internal/repository"
	"socialconnect/internal/validation"
)

// UserService implements profiles and the follow graph.
type UserService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	notifier ActivityNotifier
}

// NewUserService returns a UserService. notifier may be nil.
func NewUserService(users repository.UserRepository, follows repository.FollowRepository, notifier ActivityNotifier) *UserService {
	if notifier == nil {
		notifier = (*NotificationService)(nil)
	}
	return &UserService{users: users, follows: follows, notifier: notifier}
}

// Me returns the caller's own profile with counts.
func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.users.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.ApplyCounts(counts)
	return user, nil
}

// UpdateProfileInput is a partial profile update; nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID            uint    `json:"-"`
	Username          *string `json:"username"`
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	Bio               *string `json:"bio"`
	AvatarURL         *string `json:"avatar_url"`
	Website           *string `json:"website"`
	Location          *string `json:"location"`
	ProfileVisibility *string `json:"profile_visibility"`
}

// Fields validates the input and returns the columns to update.
func (in UpdateProfileInput) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["username"] = name
	}
	for col, v := range map[string]*string{"first_name": in.FirstName, "last_name": in.LastName} {
		if v == nil {
			continue
		}
		name := strings.TrimSpace(*v)
		if err := validation.ValidateName(col, name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields[col] = name
	}
	if in.Bio != nil {
		bio := validation.NormalizeText(*in.Bio)
		if err := validation.ValidateLength("bio", bio, validation.MaxBioLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["bio"] = bio
	}
	for col, v := range map[string]*string{"avatar_url": in.AvatarURL, "website": in.Website} {
		if v == nil {
			continue
		}
		raw := strings.TrimSpace(*v)
		if err := validation.ValidateURL(col, raw); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields[col] = raw
	}
	if in.Location != nil {
		loc := strings.TrimSpace(*in.Location)
		if err := validation.ValidateLength("location", loc, 100); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["location"] = loc
	}
	if in.ProfileVisibility != nil {
		v, err := models.ParseVisibility(strings.TrimSpace(*in.ProfileVisibility))
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["profile_visibility"] = v
	}
	if len(fields) == 0 {
		return nil, models.NewValidationError("No valid fields to update")
	}
	return fields, nil
}

// UpdateMe applies a partial update to the caller's profile.
func (s *UserService) UpdateMe(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	fields, err := in.Fields()
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateFields(ctx, in.UserID, fields); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, in.UserID)
	return s.Me(ctx, in.UserID)
}

// List returns active users, optionally filtered by a name search.
func (s *UserService) List(ctx context.Context, search string, page repository.Page) ([]models.User, int64, error) {
	users, total, err := s.users.List(ctx, repository.UserFilter{
		Search: strings.TrimSpace(search),
		Status: repository.UserStatusActive,
		Page:   page,
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.User, len(users))
	for i := range users {
		out[i] = *publicUser(&users[i])
		out[i].Bio = users[i].Bio
	}
	return out, total, nil
}

// Profile returns targetID's profile as seen by viewer. Missing or inactive
// users are NOT_FOUND; profiles hidden by visibility are FORBIDDEN.
func (s *UserService) Profile(ctx context.Context, viewer policy.Viewer, targetID uint) (*models.User, error) {
	var snapshot models.User
	err := cache.Aside(ctx, cache.UserProfileKey(targetID), &snapshot, cache.UserTTL, func() error {
		user, err := s.users.GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		counts, err := s.users.Counts(ctx, targetID)
		if err != nil {
			return err
		}
		user.ApplyCounts(counts)
		snapshot = *user
		return nil
	})
	if err != nil {
		return nil, err
	}
	user := &snapshot
	if !user.IsActive && !viewer.IsOwner(user.ID) {
		return nil, models.NewNotFoundError("User", targetID)
	}

	following, err := s.checkVisible(ctx, viewer, user)
	if err != nil {
		return nil, err
	}

	if !viewer.IsOwner(user.ID) {
		user.Email = ""
		user.LastLogin = nil
		if viewer.Authenticated {
			user.IsFollowing = &following
		}
	}
	return user, nil
}

// checkVisible returns FORBIDDEN when viewer may not see owner's profile and
// reports whether viewer follows owner.
func (s *UserService) checkVisible(ctx context.Context, viewer policy.Viewer, owner *models.User) (bool, error) {
	following := false
	if viewer.Authenticated && !viewer.IsOwner(owner.ID) {
		var err error
		following, err = s.follows.Exists(ctx, viewer.UserID, owner.ID)
		if err != nil {
			return false, err
		}
	}
	if policy.CanView(viewer, owner.ID, owner.ProfileVisibility, following) {
		return following, nil
	}
	observability.VisibilityDenials.WithLabelValues("profile").Inc()
	if owner.ProfileVisibility == models.VisibilityFollowersOnly {
		return false, models.NewForbiddenError("This profile is only visible to followers")
	}
	return false, models.NewForbiddenError("This profile is private")
}

func (s *UserService) visibleTarget(ctx context.Context, viewer policy.Viewer, targetID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive && !viewer.IsOwner(user.ID) {
		return nil, models.NewNotFoundError("User", targetID)
	}
	if _, err := s.checkVisible(ctx, viewer, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Followers lists the users following targetID, subject to targetID's visibility.
func (s *UserService) Followers(ctx context.Context, viewer policy.Viewer, targetID uint, page repository.Page) ([]models.User, int64, error) {
	if _, err := s.visibleTarget(ctx, viewer, targetID); err != nil {
		return nil, 0, err
	}
	return s.follows.Followers(ctx, targetID, page)
}

// Following lists the users targetID follows, subject to targetID's visibility.
func (s *UserService) Following(ctx context.Context, viewer policy.Viewer, targetID uint, page repository.Page) ([]models.User, int64, error) {
	if _, err := s.visibleTarget(ctx, viewer, targetID); err != nil {
		return nil, 0, err
	}
	return s.follows.Following(ctx, targetID, page)
}

// Follow creates the edge followerID -> targetID. Duplicates are reported by
// the insert as CONFLICT.
func (s *UserService) Follow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !target.IsActive {
		return models.NewNotFoundError("User", targetID)
	}
	if err := s.follows.Create(ctx, followerID, targetID); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, followerID)
	cache.InvalidateUser(ctx, targetID)
	s.notifier.Notify(ctx, NotifyInput{RecipientID: targetID, ActorID: followerID, Type: models.NotificationFollow})
	return nil
}

// Unfollow removes the edge if present. Removing a missing edge succeeds.
func (s *UserService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("You cannot unfollow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}
	removed, err := s.follows.Delete(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if removed {
		cache.InvalidateUser(ctx, followerID)
		cache.InvalidateUser(ctx, targetID)
	}
	return nil
}
