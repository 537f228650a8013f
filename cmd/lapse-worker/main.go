package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/app"
	"github.com/hackgods/provider-scheduling/internal/appointment"
	"github.com/hackgods/provider-scheduling/internal/config"
	"github.com/hackgods/provider-scheduling/internal/logger"
)

// lapse-worker periodically cancels scheduled appointments whose date has
// passed without the provider confirming them.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "lapse-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("lapse-worker starting up")

	if cfg.StorageDriver == config.DriverMemory {
		log.Warn().Msg("memory storage is private to this process; the worker will only see its own appointments")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.Build(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer core.Close()

	// Run once at startup
	runOnce(rootCtx, core.Engine, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping lapse worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, core.Engine, log)
		}
	}
}

func runOnce(ctx context.Context, engine *appointment.Engine, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := engine.CancelLapsed(runCtx, start)
	if err != nil {
		log.Error().Err(err).Int("cancelled", n).Msg("lapse run error")
		return
	}
	log.Info().Int("cancelled", n).Dur("took", time.Since(start)).Msg("lapse run complete")
}
