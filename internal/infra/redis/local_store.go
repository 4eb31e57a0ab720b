package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"histosaga-service/internal/domain"
)

// LocalStore is the durable key-value store of the service, backed by Redis.
// Keys are namespaced with a prefix so several deployments can share a server.
type LocalStore struct {
	client *redis.Client
	prefix string
}

func NewLocalStore(client *redis.Client, prefix string) *LocalStore {
	return &LocalStore{client: client, prefix: prefix}
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
