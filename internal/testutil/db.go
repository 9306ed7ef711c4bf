// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"socialconnect/internal/database"
	"socialconnect/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewTestRedis starts a miniredis server for t and returns a client for it.
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// UserOption customizes a user created by CreateUser.
type UserOption func(*models.User)

// WithVisibility sets the profile visibility.
func WithVisibility(v models.Visibility) UserOption {
	return func(u *models.User) { u.ProfileVisibility = v }
}

// AsAdmin marks the user as an administrator.
func AsAdmin() UserOption {
	return func(u *models.User) { u.IsAdmin = true }
}

// WithPasswordHash sets the stored password digest.
func WithPasswordHash(hash string) UserOption {
	return func(u *models.User) { u.PasswordHash = hash }
}

// CreateUser inserts an active public user named username.
func CreateUser(t *testing.T, db *gorm.DB, username string, opts ...UserOption) *models.User {
	t.Helper()
	u := &models.User{
		Username:          username,
		Email:             username + "@example.com",
		PasswordHash:      "unused",
		FirstName:         strings.ToUpper(username[:1]) + username[1:],
		LastName:          "Tester",
		IsActive:          true,
		ProfileVisibility: models.VisibilityPublic,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts an active post by author.
func CreatePost(t *testing.T, db *gorm.DB, authorID uint, content string) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: authorID, Content: content, Category: models.CategoryGeneral, IsActive: true}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Follow inserts a follow edge from follower to following.
func Follow(t *testing.T, db *gorm.DB, followerID, followingID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error)
}
