package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"authweb/internal/domain"
)

// SessionStore guarda el estado server-side de sesiones: token (u opaque id)
// hacia el usuario autenticado, con TTL.
type SessionStore interface {
	Save(token, userID string, ttl time.Duration) error
	Get(token string) (string, bool, error)
	Delete(token string) error
}

type memorySessionStore struct {
	mu    sync.Mutex
	items map[string]domain.Session
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		items: make(map[string]domain.Session),
	}
}

func (s *memorySessionStore) Save(token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(token) == "" {
		return nil
	}
	now := time.Now().UTC()
	s.items[token] = domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return nil
}

func (s *memorySessionStore) Get(token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[token]
	if !ok {
		return "", false, nil
	}
	if entry.Expired(time.Now().UTC()) {
		delete(s.items, token)
		return "", false, nil
	}
	return entry.UserID, true, nil
}

func (s *memorySessionStore) Delete(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
	return nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSessionStore struct {
	client redisKVClient
	prefix string
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	if client == nil {
		return nil
	}
	return &redisSessionStore{
		client: client,
		prefix: "auth:session:",
	}
}

func (s *redisSessionStore) Save(token, userID string, ttl time.Duration) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+token, userID, ttl).Err()
}

func (s *redisSessionStore) Get(token string) (string, bool, error) {
	if strings.TrimSpace(token) == "" {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	userID, err := s.client.Get(ctx, s.prefix+token).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (s *redisSessionStore) Delete(token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+token).Err()
}
