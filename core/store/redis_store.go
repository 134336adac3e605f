package store

import (
	"context"
	"errors"
	"time"

	"admin-console/config"
	"admin-console/core/utils"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *utils.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Printf("redis connected addr=%s db=%d", cfg.Addr, cfg.DB)
	return client, nil
}

// RedisSessionStore keeps sealed records as plain keys; expiry is the key TTL,
// so it needs no purge job.
type RedisSessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

func (s *RedisSessionStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.Delete(ctx, key)
		}
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
