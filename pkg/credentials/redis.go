package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "quasar:credentials:"

// RedisStore shares credentials between the API and worker processes.
type RedisStore struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisStore connects to the redis server at url (redis://[:password@]host:port/db).
func NewRedisStore(ctx context.Context, url string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return NewRedisStoreWithClient(client, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func key(kind Kind) string {
	return redisKeyPrefix + string(kind)
}

func (s *RedisStore) Get(ctx context.Context, kind Kind) (string, error) {
	token, err := s.client.Get(ctx, key(kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}

		return "", fmt.Errorf("failed to read %s credential: %w", kind, err)
	}

	return token, nil
}

func (s *RedisStore) Set(ctx context.Context, kind Kind, token string) error {
	err := s.client.Set(ctx, key(kind), token, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to store %s credential: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "Credential connected", "kind", kind)

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, kind Kind) error {
	err := s.client.Del(ctx, key(kind)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete %s credential: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "Credential disconnected", "kind", kind)

	return nil
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
