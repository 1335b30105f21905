package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "handoff-code:"

// CodeStore issues short-lived one-time codes that a browser exchanges for a
// session, e.g. when handing off from OAuth login to the SPA. Codes live in
// Redis with a TTL and are consumed atomically.
type CodeStore interface {
	Generate(ctx context.Context, userID string) (string, error)
	Consume(ctx context.Context, code string) (string, error)
}

type redisCodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCodeStore builds a Redis-backed code store.
func NewCodeStore(client *redis.Client, ttl time.Duration) CodeStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &redisCodeStore{client: client, ttl: ttl}
}

func (s *redisCodeStore) Generate(ctx context.Context, userID string) (string, error) {
	code := uuid.NewString()
	if err := s.client.Set(ctx, codeKeyPrefix+code, userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

func (s *redisCodeStore) Consume(ctx context.Context, code string) (string, error) {
	userID, err := s.client.GetDel(ctx, codeKeyPrefix+code).Result()
	if err != nil {
		return "", err
	}
	return userID, nil
}
