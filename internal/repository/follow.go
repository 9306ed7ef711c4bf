package repository

import (
	"context"

	"socialconnect/internal/models"
	"socialconnect/internal/observability"

	"gorm.io/gorm"
)

// FollowRepository stores directed follow edges.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followingID uint) error
	Delete(ctx context.Context, followerID, followingID uint) (bool, error)
	Exists(ctx context.Context, followerID, followingID uint) (bool, error)
	FollowingIDs(ctx context.Context, followerID uint) ([]uint, error)
	Followers(ctx context.Context, userID uint, page Page) ([]models.User, int64, error)
	Following(ctx context.Context, userID uint, page Page) ([]models.User, int64, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new FollowRepository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Create inserts the edge. The unique index on the pair decides duplicates,
// so concurrent follows of the same user cannot both succeed.
func (r *followRepository) Create(ctx context.Context, followerID, followingID uint) error {
	defer observability.TrackQuery("insert", "follows")()
	err := r.db.WithContext(ctx).Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Already following this user")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followingID uint) (bool, error) {
	defer observability.TrackQuery("delete", "follows")()
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID uint) (bool, error) {
	if followerID == 0 || followingID == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, followerID uint) ([]uint, error) {
	ids := []uint{}
	if followerID == 0 {
		return ids, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", followerID).
		Pluck("following_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) Followers(ctx context.Context, userID uint, page Page) ([]models.User, int64, error) {
	return r.listEdge(ctx, "follows.follower_id", "follows.following_id", userID, page)
}

func (r *followRepository) Following(ctx context.Context, userID uint, page Page) ([]models.User, int64, error) {
	return r.listEdge(ctx, "follows.following_id", "follows.follower_id", userID, page)
}

// listEdge returns the active users on the joinCol side of edges whose
// matchCol equals userID.
func (r *followRepository) listEdge(ctx context.Context, joinCol, matchCol string, userID uint, page Page) ([]models.User, int64, error) {
	defer observability.TrackQuery("select", "follows")()
	q := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN follows ON users.id = "+joinCol).
		Where(matchCol+" = ? AND users.is_active = ?", userID, true).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	cols := make([]string, len(models.PublicColumns))
	for i, c := range models.PublicColumns {
		cols[i] = "users." + c
	}
	var users []models.User
	if err := q.Select(cols).
		Order("follows.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}
