package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemorySessions = 1024

// MemoryStore keeps resolved sessions in a bounded LRU with a fixed TTL.
type MemoryStore struct {
	cache *expirable.LRU[string, *Data]
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: expirable.NewLRU[string, *Data](defaultMemorySessions, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Data, bool) {
	data, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cloneData(data), true
}

func (s *MemoryStore) Set(_ context.Context, key string, data *Data) {
	if key == "" || data == nil {
		return
	}
	s.cache.Add(key, cloneData(data))
}

func (s *MemoryStore) Delete(_ context.Context, key string) {
	s.cache.Remove(key)
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
