package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "roadworks:revoked:"

// RedisSessionRevocationStore keeps logout markers until the token would have expired anyway.
type RedisSessionRevocationStore struct {
	client *redis.Client
}

func NewRedisSessionRevocationStore(client *redis.Client) *RedisSessionRevocationStore {
	return &RedisSessionRevocationStore{client: client}
}

func (s *RedisSessionRevocationStore) MarkRevoked(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// already expired: signature checks reject it, no marker needed
		return nil
	}
	return s.client.Set(ctx, revokedPrefix+tokenHash, "1", ttl).Err()
}

func (s *RedisSessionRevocationStore) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+tokenHash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
