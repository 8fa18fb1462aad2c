package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "relay:session:"

// RedisStore keeps sessions as JSON values that expire after ttl of inactivity.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore wraps a Redis client. A non-positive ttl keeps sessions without expiry.
func NewRedisStore(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger.Named("session"), now: time.Now}
}

func key(conversationID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, conversationID)
}

// Load returns the stored session or a fresh idle one. An undecodable value
// is logged and replaced by an idle session.
func (r *RedisStore) Load(ctx context.Context, conversationID int64) (*Session, error) {
	raw, err := r.client.Get(ctx, key(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Session{ConversationID: conversationID}, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		r.logger.Warn("discarding undecodable session",
			zap.Int64("conversation_id", conversationID),
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
		return &Session{ConversationID: conversationID}, nil
	}
	s.ConversationID = conversationID
	return &s, nil
}

// Save stores s and refreshes its expiry. An idle session is deleted.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s.Idle() {
		return r.Delete(ctx, s.ConversationID)
	}
	s.UpdatedAt = r.now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, key(s.ConversationID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, conversationID int64) error {
	if err := r.client.Del(ctx, key(conversationID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
