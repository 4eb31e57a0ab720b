package memory

import (
	"context"
	"sync"

	"histosaga-service/internal/domain"
)

// LocalStore is an in-process key-value store for the offline queue and activity cache.
type LocalStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewLocalStore() *LocalStore {
	return &LocalStore{data: make(map[string][]byte)}
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *LocalStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
