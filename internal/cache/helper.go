package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	UserProfileKeyPrefix = "user:%d:profile"
	AdminStatsKey        = "admin:stats"
)

const (
	UserTTL       = 5 * time.Minute
	AdminStatsTTL = 30 * time.Second
)

// UserProfileKey is the cache key of a user's public profile.
func UserProfileKey(userID uint) string {
	return fmt.Sprintf(UserProfileKeyPrefix, userID)
}

// GetJSON loads key into dest. It reports false on a miss or without a client.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside serves dest from Redis, or calls fetch to fill dest and stores it
// with ttl. Cache failures fall through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	// Best effort
	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate removes key.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateUser removes every cached view of userID.
func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserProfileKey(userID))
}
