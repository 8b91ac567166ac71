package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newsrag/models"
)

const (
	sessionKeyPrefix = "chat:"
	maxAppendRetries = 5
)

// SessionKey returns the cache key holding a session's history.
func SessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// RedisSessionRepository keeps short-lived conversation history as a JSON
// array of messages under chat:<sessionId>.
type RedisSessionRepository struct {
	client      *redis.Client
	ttl         time.Duration
	maxMessages int
}

// NewRedisSessionRepository returns a repository whose keys expire ttl after
// the last write and whose histories are capped at maxMessages (0 disables).
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration, maxMessages int) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, ttl: ttl, maxMessages: maxMessages}
}

// GetHistory returns the cached history, or nil when the session has none.
func (r *RedisSessionRepository) GetHistory(ctx context.Context, sessionID string) ([]models.Message, error) {
	val, err := r.client.Get(ctx, SessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var history []models.Message
	if err := json.Unmarshal(val, &history); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return history, nil
}

// AppendTurns appends turns to the session history with optimistic locking,
// trims it to the configured cap and refreshes the expiry. A cached value
// that cannot be decoded is replaced.
func (r *RedisSessionRepository) AppendTurns(ctx context.Context, sessionID string, turns ...models.Message) error {
	key := SessionKey(sessionID)
	txf := func(tx *redis.Tx) error {
		var history []models.Message
		val, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(val, &history); err != nil {
				history = nil
			}
		}

		history = models.TrimHistory(append(history, turns...), r.maxMessages)
		data, err := json.Marshal(history)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxAppendRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return models.ErrSessionConflict
}

// DeleteHistory removes the session key and reports how many keys were
// removed (0 or 1).
func (r *RedisSessionRepository) DeleteHistory(ctx context.Context, sessionID string) (int64, error) {
	return r.client.Del(ctx, SessionKey(sessionID)).Result()
}
