package repository

import (
	"context"

	"socialconnect/internal/models"
	"socialconnect/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Comment, int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and bumps the post's comment_count atomically.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Comment, int64, error) {
	defer observability.TrackQuery("select", "comments")()
	q := readDB(r.db).WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var comments []*models.Comment
	err := q.Preload("User", func(tx *gorm.DB) *gorm.DB {
		return tx.Select(models.PublicColumns)
	}).
		Order("created_at ASC, id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return comments, total, nil
}
