package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ContextStore persists a platform admin's selected organization between requests.
type ContextStore interface {
	Get(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error)
	Set(ctx context.Context, userID, orgID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

const adminContextKeyPrefix = "access:admin_org:"

// RedisContextStore keeps the admin-selected organization in Redis with a sliding TTL.
type RedisContextStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisContextStore creates a Redis-backed ContextStore. A zero ttl keeps selections until cleared.
func NewRedisContextStore(client *redis.Client, ttl time.Duration) *RedisContextStore {
	return &RedisContextStore{client: client, ttl: ttl}
}

func adminContextKey(userID uuid.UUID) string {
	return adminContextKeyPrefix + userID.String()
}

// Get returns the selected organization, if any.
func (s *RedisContextStore) Get(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error) {
	key := adminContextKey(userID)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("get admin context: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		// Unreadable value; drop it so the admin falls back to their own organization.
		s.client.Del(ctx, key)
		return uuid.Nil, false, nil
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, key, s.ttl)
	}
	return id, true, nil
}

// Set stores orgID as the selected organization.
func (s *RedisContextStore) Set(ctx context.Context, userID, orgID uuid.UUID) error {
	if err := s.client.Set(ctx, adminContextKey(userID), orgID.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("set admin context: %w", err)
	}
	return nil
}

// Clear removes the selection.
func (s *RedisContextStore) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, adminContextKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear admin context: %w", err)
	}
	return nil
}
