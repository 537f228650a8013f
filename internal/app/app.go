// Package app wires the scheduling core from configuration. The binaries
// under cmd share it so they all see the same storage and lock setup.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/appointment"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/config"
	"github.com/hackgods/provider-scheduling/internal/db"
	"github.com/hackgods/provider-scheduling/internal/lock"
	"github.com/hackgods/provider-scheduling/internal/metrics"
	redisclient "github.com/hackgods/provider-scheduling/internal/redis"
	"github.com/hackgods/provider-scheduling/internal/slots"
	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

const serviceName = "scheduling"

type App struct {
	Grid      *timegrid.Grid
	Schedules *availability.Service
	Resolver  *slots.Resolver
	Engine    *appointment.Engine
	Metrics   *metrics.Collector

	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Breaker *lock.BreakerLocker

	closers []func()
}

// Build connects the configured backends and assembles the core. Callers
// must Close the result.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{}

	grid, err := timegrid.NewGrid(cfg.GridStart, cfg.SlotWidth(), cfg.SlotCount)
	if err != nil {
		return nil, err
	}
	a.Grid = grid

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewCollector(serviceName, reg)

	var (
		templates availability.Repository
		ledger    appointment.Ledger
		occupancy slots.OccupancySource
	)

	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, err
		}
		a.PgPool = pool
		a.closers = append(a.closers, pool.Close)

		if err := db.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Msg("connected to postgres")

		pg := appointment.NewPgLedger(pool)
		templates, ledger, occupancy = availability.NewPgRepository(pool), pg, pg
	default:
		mem := appointment.NewMemoryLedger()
		templates, ledger, occupancy = availability.NewMemoryRepository(), mem, mem
		log.Warn().Msg("using in-memory storage, data is lost on exit")
	}

	local := lock.NewLocalLocker(cfg.LockWait)
	var locker lock.Locker = local

	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing redis")
			}
		})
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")

		a.Breaker = lock.NewBreakerLocker(
			lock.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait, log),
			local,
			lock.BreakerSettings{MaxFailures: cfg.BreakerMaxFailures, OpenTimeout: cfg.BreakerOpenTimeout},
			log,
		)
		locker = a.Breaker
	}

	a.Schedules = availability.NewService(templates, log)
	a.Resolver = slots.NewResolver(grid, a.Schedules, occupancy)
	a.Engine = appointment.NewEngine(ledger, a.Resolver, locker, a.Metrics, log, appointment.Options{
		ReasonMinLength: cfg.ReasonMinLength,
		ReasonMaxLength: cfg.ReasonMaxLength,
		Location:        cfg.Location,
	})

	return a, nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
