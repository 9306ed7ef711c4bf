package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"socialconnect/internal/models"
	"socialconnect/internal/observability"

	"gorm.io/gorm"
)

// UserStatus filters users by activation state.
type UserStatus string

const (
	UserStatusAny      UserStatus = ""
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// UserFilter selects users for list endpoints.
type UserFilter struct {
	Search string
	Status UserStatus
	Page   Page
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	IDsByUsernames(ctx context.Context, usernames []string) (map[string]uint, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	SetActive(ctx context.Context, id uint, active bool) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
	Counts(ctx context.Context, id uint) (models.UserCounts, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

var userLog = observability.NewRepoLogger("users")

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("select", "users")()
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// findOne returns nil, nil when no row matches.
func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	defer observability.TrackQuery("select", "users")()
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) IDsByUsernames(ctx context.Context, usernames []string) (map[string]uint, error) {
	out := make(map[string]uint, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}
	var rows []struct {
		ID       uint
		Username string
	}
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Select("id", "username").
		Where("username IN ? AND is_active = ?", usernames, true).
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.Username] = row.ID
	}
	return out, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("insert", "users")()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User with this email or username already exists")
		}
		userLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	userLog.LogCreate(ctx, map[string]any{"id": user.ID, "username": user.Username})
	return nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.update(ctx, id, fields)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash})
}

func (r *userRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.update(ctx, id, map[string]any{"is_active": active})
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	return r.update(ctx, id, map[string]any{"is_admin": admin})
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.update(ctx, id, map[string]any{"last_login": at})
}

func (r *userRepository) update(ctx context.Context, id uint, fields map[string]any) error {
	defer observability.TrackQuery("update", "users")()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Username or email already taken")
		}
		userLog.LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	userLog.LogUpdate(ctx, map[string]any{"id": id, "fields": fieldNames(fields)})
	return nil
}

func (r *userRepository) Counts(ctx context.Context, id uint) (models.UserCounts, error) {
	defer observability.TrackQuery("count", "users")()
	var c models.UserCounts
	db := readDB(r.db).WithContext(ctx)
	if err := db.Model(&models.Follow{}).Where("following_id = ?", id).Count(&c.Followers).Error; err != nil {
		return c, models.NewInternalError(err)
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", id).Count(&c.Following).Error; err != nil {
		return c, models.NewInternalError(err)
	}
	if err := db.Model(&models.Post{}).Where("author_id = ? AND is_active = ?", id, true).Count(&c.Posts).Error; err != nil {
		return c, models.NewInternalError(err)
	}
	return c, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	defer observability.TrackQuery("select", "users")()
	q := readDB(r.db).WithContext(ctx).Model(&models.User{})
	switch filter.Status {
	case UserStatusActive:
		q = q.Where("is_active = ?", true)
	case UserStatusInactive:
		q = q.Where("is_active = ?", false)
	}
	if filter.Search != "" {
		like := containsPattern(filter.Search)
		q = q.Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\'`, like, like, like)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := q.Order("created_at DESC, id DESC").
		Limit(filter.Page.Limit).
		Offset(filter.Page.Offset).
		Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
