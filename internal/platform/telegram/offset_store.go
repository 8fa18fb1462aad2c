package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const pollingOffsetKey = "telegram:polling:offset"

// RedisOffsetStore keeps the polling offset in Redis.
type RedisOffsetStore struct {
	client redis.Cmdable
}

// NewRedisOffsetStore wraps a Redis client.
func NewRedisOffsetStore(client redis.Cmdable) *RedisOffsetStore {
	return &RedisOffsetStore{client: client}
}

// GetOffset returns the saved offset, or 0 when none was saved.
func (s *RedisOffsetStore) GetOffset(ctx context.Context) (int64, error) {
	val, err := s.client.Get(ctx, pollingOffsetKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get polling offset: %w", err)
	}
	offset, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse polling offset: %w", err)
	}
	return offset, nil
}

// SaveOffset persists offset without expiry.
func (s *RedisOffsetStore) SaveOffset(ctx context.Context, offset int64) error {
	if err := s.client.Set(ctx, pollingOffsetKey, strconv.FormatInt(offset, 10), 0).Err(); err != nil {
		return fmt.Errorf("save polling offset: %w", err)
	}
	return nil
}
