package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/hsm-appointments/internal/api/router"
	"github.com/wolfman30/hsm-appointments/internal/app/bootstrap"
	"github.com/wolfman30/hsm-appointments/internal/appointments"
	appconfig "github.com/wolfman30/hsm-appointments/internal/config"
	"github.com/wolfman30/hsm-appointments/internal/http/handlers"
	"github.com/wolfman30/hsm-appointments/internal/observability/metrics"
	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

const (
	authRateLimitRPS = 1
	authRateBurst    = 5
)

type app struct {
	sessions session.Store
	manager  *session.Manager
	store    *appointments.Store
	runtime  *bootstrap.Runtime
	redis    *redis.Client
}

func setupSyncMetrics() (http.Handler, *metrics.SyncMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSyncMetrics(reg)
}

// buildApp wires the session manager, working set and sync runtime.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, sm *metrics.SyncMetrics) (*app, error) {
	client, err := bootstrap.BuildAPIClient(cfg, logger.Component("hsmapi"))
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.SessionStore == appconfig.SessionStoreRedis {
		redisClient = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	}
	store, err := bootstrap.BuildSessionStore(ctx, cfg, redisClient, logger)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, fmt.Errorf("session store: %w", err)
	}

	sessionLogger := logger.Component("session")
	watchdog := session.NewWatchdog(cfg.IdleTimeout, sessionLogger)
	manager := session.NewManager(client, store, watchdog, sessionLogger).WithMetrics(sm)

	apptLogger := logger.Component("appointments")
	appts := appointments.NewStore(client, manager, apptLogger).
		WithMetrics(sm).
		WithDefaultProvider(cfg.DefaultProviderName)
	poller := appointments.NewPoller(appts, apptLogger).WithInterval(cfg.RefreshInterval)
	runtime := bootstrap.NewRuntime(manager, appts, poller, logger.Component("runtime"))

	return &app{
		sessions: store,
		manager:  manager,
		store:    appts,
		runtime:  runtime,
		redis:    redisClient,
	}, nil
}

func (a *app) handler(cfg *appconfig.Config, logger *logging.Logger, metricsHandler http.Handler) http.Handler {
	return router.New(&router.Config{
		Logger:              logger.Component("http"),
		Sessions:            a.manager,
		SessionHandler:      handlers.NewSessionHandler(a.manager, logger),
		AppointmentsHandler: handlers.NewAppointmentsHandler(a.store, logger),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		AuthRateLimitRPS:    authRateLimitRPS,
		AuthRateBurst:       authRateBurst,
	})
}

func (a *app) close() {
	a.runtime.Stop()
	if c, ok := a.sessions.(io.Closer); ok {
		_ = c.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
