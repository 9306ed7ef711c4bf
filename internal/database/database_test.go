package database

import (
	"testing"

	"socialconnect/internal/config"
	"socialconnect/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestMigrate_CreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger(middleware.Logger)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "refresh_tokens", "posts", "comments", "likes", "follows", "notifications"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasIndex("follows", "idx_follows_pair"))
	assert.True(t, db.Migrator().HasIndex("likes", "idx_likes_user_post"))
}

func TestPostgresDSN_DefaultsSSLMode(t *testing.T) {
	t.Parallel()
	assert.Contains(t, postgresDSN("h", "5432", "u", "p", "d", ""), "sslmode=disable")
	assert.Contains(t, postgresDSN("h", "5432", "u", "p", "d", "require"), "sslmode=require")
}
