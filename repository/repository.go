package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newsrag/models"
	"github.com/mohammad-safakhou/newsrag/repository/redis_repository"
)

// SessionRepository defines the interface for conversation history storage.
// History is advisory: callers may treat a failed read as an empty session.
type SessionRepository interface {
	GetHistory(ctx context.Context, sessionID string) ([]models.Message, error)
	AppendTurns(ctx context.Context, sessionID string, turns ...models.Message) error
	DeleteHistory(ctx context.Context, sessionID string) (int64, error)
}

// SessionOptions bounds how much history is kept and for how long.
type SessionOptions struct {
	TTL         time.Duration
	MaxMessages int
}

// NewSessionRepository returns the Redis-backed session repository.
func NewSessionRepository(client *redis.Client, opts SessionOptions) SessionRepository {
	return redis_repository.NewRedisSessionRepository(client, opts.TTL, opts.MaxMessages)
}
