// Package session holds a client-side login session and persists it through
// a pluggable key-value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("session: key not found")

// User is the account the session belongs to.
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
}

// Session is the credential set handed to every Client call.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Valid reports whether the session carries both tokens.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}

// KV is the persistence behind a Store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryKV is a process-local KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// RedisKV stores values in Redis without expiry.
type RedisKV struct {
	rdb *redis.Client
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *RedisKV) Put(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Store saves sessions as JSON under prefix+name.
type Store struct {
	kv     KV
	prefix string
}

// NewStore returns a Store. An empty prefix defaults to "session:".
func NewStore(kv KV, prefix string) *Store {
	if prefix == "" {
		prefix = "session:"
	}
	return &Store{kv: kv, prefix: prefix}
}

// Load returns the saved session, or nil when none is stored.
func (s *Store) Load(ctx context.Context, name string) (*Session, error) {
	raw, err := s.kv.Get(ctx, s.prefix+name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", name, err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", name, err)
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, name string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", name, err)
	}
	if err := s.kv.Put(ctx, s.prefix+name, raw); err != nil {
		return fmt.Errorf("save session %q: %w", name, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, name string) error {
	if err := s.kv.Delete(ctx, s.prefix+name); err != nil {
		return fmt.Errorf("clear session %q: %w", name, err)
	}
	return nil
}
