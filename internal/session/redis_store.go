package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore persists session values in Redis under a key prefix, so several
// client instances on one workstation share a login.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore wraps client. A zero ttl keeps values until logout.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		tracer: otel.Tracer("hsm.internal.session.redis"),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.redis_get")
	defer span.End()

	v, err := s.redis.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("session: redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.tracer.Start(ctx, "session.redis_set")
	defer span.End()

	if err := s.redis.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "session.redis_delete")
	defer span.End()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: redis delete: %w", err)
	}
	return nil
}
