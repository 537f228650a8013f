package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/app"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/config"
	"github.com/hackgods/provider-scheduling/internal/identity"
	"github.com/hackgods/provider-scheduling/internal/logger"
	"github.com/hackgods/provider-scheduling/internal/seeddata"
)

// seed writes randomly generated weekly templates for new providers and
// prints their IDs, one per line, on stdout.
func main() {
	providers := flag.Int("providers", 100, "number of providers to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.NewTo(os.Stderr, "info", "json")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logger.NewTo(os.Stderr, cfg.LogLevel, cfg.LogFormat).With().Str("service", "seed").Logger()
	log.Info().Int("providers", *providers).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	core, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer core.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	enabled, err := seedProviders(ctx, core.Schedules, faker, *providers, os.Stdout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed schedule")
	}

	log.Info().
		Int("providers", *providers).
		Float64("avg_enabled_days", float64(enabled)/float64(max(*providers, 1))).
		Int("business_days", len(availability.BusinessDays)).
		Msg("seed complete")
}

// seedProviders stores n generated templates, writing each new provider ID to
// out. It returns the total number of enabled days across all templates.
func seedProviders(ctx context.Context, schedules *availability.Service, faker *gofakeit.Faker, n int, out io.Writer, log zerolog.Logger) (int, error) {
	enabled := 0
	for i := 0; i < n; i++ {
		id := uuid.New()
		tmpl, err := schedules.SetSchedule(ctx, identity.System, id, seeddata.Template(faker))
		if err != nil {
			return enabled, fmt.Errorf("provider %s: %w", id, err)
		}
		enabled += len(tmpl.EnabledDays())
		fmt.Fprintln(out, id.String())

		if (i+1)%25 == 0 {
			log.Info().Msgf("providers seeded: %d/%d", i+1, n)
		}
	}
	return enabled, nil
}
