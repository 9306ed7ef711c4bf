package repository

import (
	"context"
	"time"

	"socialconnect/internal/models"
	"socialconnect/internal/observability"

	"gorm.io/gorm"
)

// StatsRepository aggregates counters for the admin console.
type StatsRepository interface {
	Overview(ctx context.Context, since time.Time) (*models.AdminStats, error)
	UserActivity(ctx context.Context, userID uint) (models.UserActivity, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new StatsRepository
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

type countQuery struct {
	dest  *int64
	model any
	where string
	args  []any
}

// Overview counts users, posts and interactions. since marks the start of "today".
func (r *statsRepository) Overview(ctx context.Context, since time.Time) (*models.AdminStats, error) {
	defer observability.TrackQuery("count", "stats")()
	var s models.AdminStats
	queries := []countQuery{
		{&s.Users.Total, &models.User{}, "", nil},
		{&s.Users.Active, &models.User{}, "is_active = ?", []any{true}},
		{&s.Users.ActiveToday, &models.User{}, "last_login >= ?", []any{since}},
		{&s.Posts.Total, &models.Post{}, "", nil},
		{&s.Posts.CreatedToday, &models.Post{}, "created_at >= ?", []any{since}},
		{&s.Engagement.TotalLikes, &models.Like{}, "", nil},
		{&s.Engagement.TotalComments, &models.Comment{}, "", nil},
		{&s.Engagement.TotalFollows, &models.Follow{}, "", nil},
	}
	if err := r.run(ctx, queries); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *statsRepository) UserActivity(ctx context.Context, userID uint) (models.UserActivity, error) {
	var a models.UserActivity
	err := r.run(ctx, []countQuery{
		{&a.Comments, &models.Comment{}, "user_id = ?", []any{userID}},
		{&a.Likes, &models.Like{}, "user_id = ?", []any{userID}},
	})
	return a, err
}

func (r *statsRepository) run(ctx context.Context, queries []countQuery) error {
	db := readDB(r.db).WithContext(ctx)
	for _, q := range queries {
		tx := db.Model(q.model)
		if q.where != "" {
			tx = tx.Where(q.where, q.args...)
		}
		if err := tx.Count(q.dest).Error; err != nil {
			return models.NewInternalError(err)
		}
	}
	return nil
}
