package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kumamontessori/kuma/internal/logging"
)

const (
	redisKeyPrefix = "session:"
	redisTimeout   = 2 * time.Second
)

// RedisStore shares resolved sessions between instances. Failures degrade
// to a cache miss so a user lookup happens instead.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(ctx context.Context, connectionString string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis connection string: %w", err)
	}
	client := redis.NewClient(opts)

	store := &RedisStore{client: client, ttl: ttl, prefix: redisKeyPrefix}
	if err := store.with(ctx, func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return store, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (*Data, bool) {
	if key == "" {
		return nil, false
	}
	var raw []byte
	err := r.with(ctx, func(ctx context.Context) (err error) {
		raw, err = r.client.Get(ctx, r.prefix+key).Bytes()
		return err
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			warn(ctx, "read", err)
		}
		return nil, false
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		warn(ctx, "decode", err)
		return nil, false
	}
	return &data, true
}

func (r *RedisStore) Set(ctx context.Context, key string, data *Data) {
	if key == "" || data == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		warn(ctx, "encode", err)
		return
	}
	if err := r.with(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err()
	}); err != nil {
		warn(ctx, "write", err)
	}
}

func (r *RedisStore) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := r.with(ctx, func(ctx context.Context) error {
		return r.client.Del(ctx, r.prefix+key).Err()
	}); err != nil {
		warn(ctx, "delete", err)
	}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// with bounds a single redis round trip so a slow instance cannot stall
// the admin request.
func (r *RedisStore) with(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return fn(ctx)
}

func warn(ctx context.Context, op string, err error) {
	logging.FromContext(ctx, slog.Default()).Warn("session store "+op+" failed", slog.Any("error", err))
}
