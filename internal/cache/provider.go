// Package cache de-duplicates webhook deliveries and holds other short-lived values.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("key not found")

const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"

	defaultKeyPrefix = "kuma:cache:"
)

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetIfAbsent stores value only when key is missing and reports whether it did.
	SetIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects the backend. MemorySize bounds the in-process cache and
// KeyPrefix namespaces redis keys shared with other services.
type Config struct {
	Provider              string
	RedisConnectionString string
	KeyPrefix             string
	MemorySize            int
}

func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderMemory, "":
		size := cfg.MemorySize
		if size <= 0 {
			size = defaultMemoryCacheSize
		}
		return NewMemoryProvider(size)
	case ProviderRedis:
		if strings.TrimSpace(cfg.RedisConnectionString) == "" {
			return nil, errors.New("redis cache requires a connection string")
		}
		prefix := cfg.KeyPrefix
		if prefix == "" {
			prefix = defaultKeyPrefix
		}
		return NewRedisProvider(ctx, cfg.RedisConnectionString, prefix)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// WebhookKey identifies one payment notification: the same payment reported
// again with a new status is a different delivery.
func WebhookKey(provider, paymentID, status string) string {
	return fmt.Sprintf("webhook:%s:%s:%s", provider, paymentID, status)
}

var (
	_ Provider = (*MemoryProvider)(nil)
	_ Provider = (*RedisProvider)(nil)
)
