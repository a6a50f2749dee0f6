package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
)

// Config selects where resolved admin sessions are cached. TTL defaults to
// CacheTTL. KeyPrefix namespaces redis keys when the instance is shared
// with other apps.
type Config struct {
	Provider              string
	RedisConnectionString string
	TTL                   time.Duration
	KeyPrefix             string
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func NewStore(ctx context.Context, cfg Config) (Store, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = CacheTTL
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderMemory:
		return NewMemoryStore(ttl), nil
	case ProviderRedis:
		if strings.TrimSpace(cfg.RedisConnectionString) == "" {
			return nil, fmt.Errorf("redis session store requires a connection string")
		}
		store, err := NewRedisStore(ctx, cfg.RedisConnectionString, ttl)
		if err != nil {
			return nil, err
		}
		store.prefix = cfg.KeyPrefix + redisKeyPrefix
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store provider: %q", cfg.Provider)
	}
}
