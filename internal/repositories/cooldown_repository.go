package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore holds short-lived per-key locks such as the OTP resend window
type CooldownStore interface {
	// Acquire takes the lock for ttl. When it is already held it returns false and
	// the time left.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	// Touch (re)starts the lock unconditionally.
	Touch(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCooldownStore implements CooldownStore with SET NX EX
type RedisCooldownStore struct {
	client *redis.Client
	prefix string
}

func NewRedisCooldownStore(client *redis.Client) *RedisCooldownStore {
	return &RedisCooldownStore{client: client, prefix: "cooldown:"}
}

func (s *RedisCooldownStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	left, err := s.client.TTL(ctx, s.prefix+key).Result()
	if err != nil {
		return false, 0, err
	}
	if left < 0 {
		left = ttl
	}
	return false, left, nil
}

func (s *RedisCooldownStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, 1, ttl).Err()
}
