package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore reserves game codes in Redis so several instances never hand out the same
// code. Reservations expire after ttl in case an instance dies without releasing them.
type CodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeStore(client *redis.Client, ttl time.Duration) *CodeStore {
	return &CodeStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *CodeStore) Reserve(ctx context.Context, code string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(code), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", code, err)
	}
	return ok, nil
}

func (s *CodeStore) Release(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, s.key(code)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", code, err)
	}
	return nil
}

func (s *CodeStore) key(code string) string {
	return "quiz:code:" + code
}
