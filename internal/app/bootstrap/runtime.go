package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/hsm-appointments/internal/config"
	"github.com/wolfman30/hsm-appointments/internal/hsmapi"
	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the persistent session backend from config. A redis
// backend without a reachable client falls back to the file store.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (session.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.SessionStore {
	case appconfig.SessionStoreMemory:
		logger.Info("session persistence disabled; using memory store")
		return session.NewMemoryStore(), nil
	case appconfig.SessionStoreRedis:
		if redisClient != nil {
			logger.Info("session persistence using redis", "prefix", cfg.SessionKeyPrefix)
			return session.NewRedisStore(redisClient, cfg.SessionKeyPrefix, 0), nil
		}
		logger.Warn("redis session store requested but redis unavailable; falling back to file", "path", cfg.SessionFile)
		return session.NewFileStore(cfg.SessionFile), nil
	case appconfig.SessionStoreSQLite:
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := session.OpenSQLiteStore(ctx, cfg.SessionDBPath)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info("session persistence using sqlite", "path", cfg.SessionDBPath)
		return store, nil
	case appconfig.SessionStoreFile, "":
		logger.Info("session persistence using file", "path", cfg.SessionFile)
		return session.NewFileStore(cfg.SessionFile), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session store %q", cfg.SessionStore)
	}
}

// BuildAPIClient returns the appointment service client for cfg.
func BuildAPIClient(cfg *appconfig.Config, logger *logging.Logger) (*hsmapi.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	client, err := hsmapi.New(hsmapi.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimitRPS,
		Burst:     cfg.APIRateBurst,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: api client: %w", err)
	}
	return client, nil
}
