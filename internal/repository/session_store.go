package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no blob is stored under a token.
var ErrSessionNotFound = errors.New("session not found")

// RedisSessionStore keeps opaque session blobs under "<prefix>:<token>" with a rolling TTL.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore constructs the store. An empty prefix defaults to "session".
func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(token string) string {
	return s.prefix + ":" + token
}

// Get returns the blob stored under token.
func (s *RedisSessionStore) Get(ctx context.Context, token string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return raw, nil
}

// Set stores blob under token with the given idle TTL.
func (s *RedisSessionStore) Set(ctx context.Context, token string, blob []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(token), blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Touch rewrites an existing session and pushes its expiry forward. It never
// recreates a session that expired or was deleted concurrently.
func (s *RedisSessionStore) Touch(ctx context.Context, token string, blob []byte, ttl time.Duration) error {
	ok, err := s.client.SetXX(ctx, s.key(token), blob, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis touch session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes the session. Deleting a missing key is not an error.
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// Scan calls fn for every live session. Keys that expire mid-scan are skipped.
func (s *RedisSessionStore) Scan(ctx context.Context, fn func(token string, blob []byte) error) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("redis get session %s: %w", key, err)
		}
		if err := fn(strings.TrimPrefix(key, s.prefix+":"), raw); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan sessions: %w", err)
	}
	return nil
}
