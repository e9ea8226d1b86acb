package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"pricewatch/internal/adapters/observability"
	"pricewatch/internal/adapters/renderer"
	"pricewatch/internal/app"
	"pricewatch/internal/normalize"
	"pricewatch/internal/retry"
	"pricewatch/internal/shared"
	mysqlrepo "pricewatch/internal/storage/mysql"
)

// The watcher sweeps every registered hotel once for a single date range
// and exits; scheduling repeated sweeps is cron's job. Hotels run strictly
// one at a time because the rendering page cannot navigate concurrently.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	checkIn := time.Now().UTC().AddDate(0, 0, cfg.WatchLeadDays).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, cfg.WatchNights)

	log.Info().
		Str("render", cfg.RenderBase).
		Str("check_in", checkIn.Format("2006-01-02")).
		Str("check_out", checkOut.Format("2006-01-02")).
		Msg("watcher starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	rend, err := renderer.New(cfg.RenderBase, cfg.TargetBase, cfg.RenderTimeout, cfg.RenderRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize renderer client")
	}

	search := app.NewSearchService(rend, repo, app.SearchConfig{
		Retry: retry.Policy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   cfg.RetryMultiplier,
		},
		BatchDelay: cfg.BatchDelay,
		Normalize:  normalize.Options{CommaIsDecimal: cfg.CommaIsDecimal},
	})

	hotels, err := repo.ListHotels(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list hotels failed")
	}
	if len(hotels) == 0 {
		log.Warn().Msg("no hotels registered, nothing to watch")
		return
	}
	keys := make([]string, 0, len(hotels))
	for _, h := range hotels {
		keys = append(keys, h.Key)
	}

	res, err := search.SearchBatch(ctx, keys, checkIn, checkOut, cfg.WatchGuests)
	if err != nil {
		log.Fatal().Err(err).Msg("batch sweep failed")
	}

	for _, f := range res.Failures {
		log.Warn().Str("hotel", f.HotelKey).Err(f.Err).Msg("sweep failed for hotel")
	}
	log.Info().
		Int("recorded", len(res.Observations)).
		Int("failed", len(res.Failures)).
		Msg("sweep completed")
}
