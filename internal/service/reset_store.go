package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"socialconnect/internal/repository"

	"github.com/redis/go-redis/v9"
)

// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
var ErrResetTokenInvalid = errors.New("invalid or expired reset token")

// ResetTokenStore holds single-use password reset tokens.
type ResetTokenStore interface {
	Save(ctx context.Context, token string, userID uint, ttl time.Duration) error
	// Consume returns the owner of token and deletes it.
	Consume(ctx context.Context, token string) (uint, error)
}

const resetKeyPrefix = "password_reset:"

// NewResetTokenStore returns a Redis-backed store, or an in-process one when
// rdb is nil.
func NewResetTokenStore(rdb *redis.Client) ResetTokenStore {
	if rdb == nil {
		return newMemoryResetStore()
	}
	return &redisResetStore{rdb: rdb}
}

type redisResetStore struct {
	rdb *redis.Client
}

func resetKey(token string) string {
	return resetKeyPrefix + repository.HashToken(token)
}

func (s *redisResetStore) Save(ctx context.Context, token string, userID uint, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, resetKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return nil
}

func (s *redisResetStore) Consume(ctx context.Context, token string) (uint, error) {
	raw, err := s.rdb.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrResetTokenInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, ErrResetTokenInvalid
	}
	return uint(id), nil
}

type memoryResetEntry struct {
	userID    uint
	expiresAt time.Time
}

type memoryResetStore struct {
	mu      sync.Mutex
	entries map[string]memoryResetEntry
	now     func() time.Time
}

func newMemoryResetStore() *memoryResetStore {
	return &memoryResetStore{entries: make(map[string]memoryResetEntry), now: time.Now}
}

func (s *memoryResetStore) Save(_ context.Context, token string, userID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[resetKey(token)] = memoryResetEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *memoryResetStore) Consume(_ context.Context, token string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := resetKey(token)
	e, ok := s.entries[key]
	if !ok {
		return 0, ErrResetTokenInvalid
	}
	delete(s.entries, key)
	if !s.now().Before(e.expiresAt) {
		return 0, ErrResetTokenInvalid
	}
	return e.userID, nil
}
