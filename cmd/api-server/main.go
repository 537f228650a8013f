package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/provider-scheduling/internal/api"
	"github.com/hackgods/provider-scheduling/internal/app"
	"github.com/hackgods/provider-scheduling/internal/config"
	"github.com/hackgods/provider-scheduling/internal/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "api-server").Logger()
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.Build(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer core.Close()

	rc := api.RouterConfig{
		Schedules: core.Schedules,
		Resolver:  core.Resolver,
		Engine:    core.Engine,
		Auth:      api.NewAuthenticator(cfg.JWTSecret, cfg.IsDev()),
		Metrics:   core.Metrics,
		Log:       log,
		PgPool:    core.PgPool,
		Redis:     core.Redis,
		Env:       cfg.Env,
		Version:   version,
	}
	if core.Breaker != nil {
		rc.Breaker = core.Breaker
	}

	srv := newServer(cfg.HTTPPort, api.NewRouter(rc))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
		core.Close()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
}

// newServer leaves BaseContext unset so that request contexts outlive the
// shutdown signal and Shutdown can drain them.
func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
