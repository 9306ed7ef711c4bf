// Package bootstrap prepares runtime dependencies shared by the commands.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"socialconnect/internal/auth"
	"socialconnect/internal/cache"
	"socialconnect/internal/config"
	"socialconnect/internal/database"
	"socialconnect/internal/middleware"
	"socialconnect/internal/models"
	"socialconnect/internal/seed"
	"socialconnect/internal/validation"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedFixture names a fixture (built-in or path) applied after connecting.
	SeedFixture string
}

// InitRuntime connects to DB and Redis and optionally applies a seed fixture.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedFixture != "" {
		fx, err := seed.LoadFixture(opts.SeedFixture)
		if err != nil {
			return nil, nil, err
		}
		if _, err := seed.NewSeeder(db, seed.Options{}).ApplyFixture(fx); err != nil {
			return nil, nil, fmt.Errorf("failed to apply fixture %s: %w", opts.SeedFixture, err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes user 1 to an active admin in
// development when DEV_BOOTSTRAP_ROOT is set.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "socialconnect_root"
	}
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("DEV_ROOT_USERNAME: %w", err)
	}
	email := validation.NormalizeEmail(cfg.DevRootEmail)
	if email == "" {
		email = "root@socialconnect.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := auth.NewPasswordHasher(cfg.BcryptCost).Hash(password)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.First(&root, 1).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				ID:                1,
				Username:          username,
				Email:             email,
				PasswordHash:      hashedPassword,
				FirstName:         "Root",
				LastName:          "Admin",
				IsActive:          true,
				IsAdmin:           true,
				ProfileVisibility: models.VisibilityPublic,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			updates := map[string]any{"is_admin": true, "is_active": true}
			if cfg.DevRootForceCredentials {
				updates["username"] = username
				updates["email"] = email
				updates["password_hash"] = hashedPassword
			}
			if err := tx.Model(&models.User{}).Where("id = ?", 1).Updates(updates).Error; err != nil {
				return err
			}
		}

		// Ensure users ID sequence is not behind explicit ID insertion.
		// This is PostgreSQL-specific.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`
				SELECT setval(
					pg_get_serial_sequence('users', 'id'),
					GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1),
					true
				)
			`).Error; err != nil {
				return fmt.Errorf("failed to reset users sequence: %w", err)
			}
		}

		return nil
	}); err != nil {
		return err
	}

	middleware.Logger.Info("development root admin bootstrap ensured",
		slog.Uint64("user_id", 1),
		slog.String("email", email),
	)
	return nil
}
