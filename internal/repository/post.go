package repository

import (
	"context"
	"errors"

	"socialconnect/internal/models"
	"socialconnect/internal/observability"

	"gorm.io/gorm"
)

// PostFilter selects posts for feeds and moderation lists.
type PostFilter struct {
	Category models.Category
	AuthorID uint
	// AuthorIDs restricts the feed to these authors when non-nil; an empty,
	// non-nil slice matches nothing.
	AuthorIDs       []uint
	Query           string
	IncludeInactive bool
	// Visibility, when set, hides posts the viewer may not see.
	Visibility *VisibilityScope
	Page       Page
}

// VisibilityScope is the viewer state the feed query needs to prefilter by
// author visibility.
type VisibilityScope struct {
	ViewerID  uint
	Following []uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	SetActive(ctx context.Context, id uint, active bool) error
	Like(ctx context.Context, userID, postID uint) error
	Unlike(ctx context.Context, userID, postID uint) (bool, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
}

var postLog = observability.NewRepoLogger("posts")

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func preloadAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(tx *gorm.DB) *gorm.DB {
		return tx.Select(models.PublicColumns)
	})
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		postLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	postLog.LogCreate(ctx, map[string]any{"id": post.ID, "author_id": post.AuthorID})
	return nil
}

// GetByID returns the post regardless of its active flag; callers decide
// whether an inactive post is visible.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	var post models.Post
	if err := preloadAuthor(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("select", "posts")()
	q := readDB(r.db).WithContext(ctx).Model(&models.Post{})

	if !filter.IncludeInactive {
		q = q.Where("posts.is_active = ?", true)
	}
	if filter.Category != "" {
		q = q.Where("posts.category = ?", filter.Category)
	}
	if filter.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", filter.AuthorID)
	}
	if filter.AuthorIDs != nil {
		if len(filter.AuthorIDs) == 0 {
			return []*models.Post{}, 0, nil
		}
		q = q.Where("posts.author_id IN ?", filter.AuthorIDs)
	}
	if filter.Query != "" {
		q = q.Where(`LOWER(posts.content) LIKE ? ESCAPE '\'`, containsPattern(filter.Query))
	}
	if scope := filter.Visibility; scope != nil {
		q = q.Joins("JOIN users ON users.id = posts.author_id").
			Where("users.is_active = ?", true)
		cond := r.db.Where("users.profile_visibility = ?", models.VisibilityPublic).
			Or("posts.author_id = ?", scope.ViewerID)
		if len(scope.Following) > 0 {
			cond = cond.Or("users.profile_visibility = ? AND posts.author_id IN ?", models.VisibilityFollowersOnly, scope.Following)
		}
		q = q.Where(cond)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []*models.Post
	if err := preloadAuthor(q).
		Select("posts.*").
		Order("posts.created_at DESC, posts.id DESC").
		Limit(filter.Page.Limit).
		Offset(filter.Page.Offset).
		Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	defer observability.TrackQuery("update", "posts")()
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.UpdateFields(ctx, id, map[string]any{"is_active": active})
}

// Like inserts the like and bumps like_count in one transaction. A second
// like of the same post fails on the unique index and returns a conflict.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) error {
	defer observability.TrackQuery("insert", "likes")()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Like{UserID: userID, PostID: postID}).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError("Post already liked")
			}
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
}

// Unlike reports whether a like was removed. Removing a missing like is not an error.
func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	defer observability.TrackQuery("delete", "likes")()
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		if err := tx.Model(&models.Post{}).Where("id = ? AND like_count > ?", postID, 0).
			UpdateColumn("like_count", gorm.Expr("like_count - ?", 1)).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	return removed, err
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if userID == 0 || len(postIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return liked, nil
}
