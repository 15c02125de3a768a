package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/hsm-appointments/internal/config"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting hsm appointment client",
		"env", cfg.Env,
		"port", cfg.Port,
		"api", cfg.APIBaseURL,
		"session_store", cfg.SessionStore,
	)

	metricsHandler, syncMetrics := setupSyncMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, syncMetrics)
	if err != nil {
		logger.Error("failed to build client", "error", err)
		os.Exit(1)
	}
	defer a.close()

	restored, err := a.runtime.Start(ctx)
	if err != nil {
		logger.Warn("could not restore session", "error", err)
	} else if restored.Authenticated() {
		logger.Info("resumed session", "identity", restored.Identity)
	}

	srv := &http.Server{
		Addr:         listenAddr(cfg),
		Handler:      a.handler(cfg, logger, metricsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("dashboard api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	a.runtime.Stop()

	logger.Info("client stopped")
	fmt.Println("Client exited gracefully")
}

func listenAddr(cfg *appconfig.Config) string {
	return "127.0.0.1:" + cfg.Port
}
