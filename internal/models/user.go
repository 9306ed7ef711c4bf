package models

import (
	"fmt"
	"time"
)

// Visibility controls who may see a user's profile and content.
type Visibility string

const (
	VisibilityPublic        Visibility = "public"
	VisibilityPrivate       Visibility = "private"
	VisibilityFollowersOnly Visibility = "followers_only"
)

// Valid reports whether v is one of the known visibility levels.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityFollowersOnly:
		return true
	}
	return false
}

// ParseVisibility converts raw input into a Visibility.
func ParseVisibility(raw string) (Visibility, error) {
	v := Visibility(raw)
	if !v.Valid() {
		return "", fmt.Errorf("profile_visibility must be one of public, private, followers_only")
	}
	return v, nil
}

// User represents a registered account. Users are deactivated, never deleted.
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;size:254;not null" json:"email,omitempty"`
	Username          string     `gorm:"uniqueIndex;size:30;not null" json:"username"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	FirstName         string     `gorm:"size:50" json:"first_name"`
	LastName          string     `gorm:"size:50" json:"last_name"`
	Bio               string     `gorm:"size:160" json:"bio"`
	AvatarURL         string     `json:"avatar_url"`
	Website           string     `json:"website,omitempty"`
	Location          string     `gorm:"size:100" json:"location,omitempty"`
	IsActive          bool       `gorm:"not null;index" json:"is_active"`
	IsAdmin           bool       `gorm:"not null" json:"is_admin"`
	EmailVerified     bool       `gorm:"not null" json:"email_verified"`
	ProfileVisibility Visibility `gorm:"type:varchar(20);not null;default:public" json:"profile_visibility"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Computed at query time.
	FollowersCount int64 `gorm:"-" json:"followers_count"`
	FollowingCount int64 `gorm:"-" json:"following_count"`
	PostsCount     int64 `gorm:"-" json:"posts_count"`
	IsFollowing    *bool `gorm:"-" json:"is_following,omitempty"`
}

// UserCounts holds the social counters attached to a profile.
type UserCounts struct {
	Followers int64
	Following int64
	Posts     int64
}

// ApplyCounts copies counters onto the user.
func (u *User) ApplyCounts(c UserCounts) {
	u.FollowersCount = c.Followers
	u.FollowingCount = c.Following
	u.PostsCount = c.Posts
}

// PublicColumns are the user columns safe to embed in other users' payloads.
var PublicColumns = []string{"id", "username", "first_name", "last_name", "avatar_url", "profile_visibility", "is_active"}
