package models

import (
	"fmt"
	"time"
)

// Category classifies a post.
type Category string

const (
	CategoryGeneral      Category = "general"
	CategoryAnnouncement Category = "announcement"
	CategoryQuestion     Category = "question"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryAnnouncement, CategoryQuestion:
		return true
	}
	return false
}

// ParseCategory converts raw input into a Category; empty input defaults to general.
func ParseCategory(raw string) (Category, error) {
	if raw == "" {
		return CategoryGeneral, nil
	}
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("category must be one of general, announcement, question")
	}
	return c, nil
}

// Post represents a short status update. Deleted posts are deactivated.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AuthorID     uint      `gorm:"not null;index" json:"author_id"`
	Author       *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content      string    `gorm:"type:text" json:"content"`
	ImageURL     string    `json:"image_url,omitempty"`
	Category     Category  `gorm:"type:varchar(20);not null;default:general;index" json:"category"`
	IsActive     bool      `gorm:"not null;index" json:"is_active"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	CommentCount int64     `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// IsLiked indicates whether the requesting user liked this post.
	IsLiked bool `gorm:"-" json:"is_liked"`
}
