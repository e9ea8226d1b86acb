package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "pricewatch/internal/adapters/http_server"
	"pricewatch/internal/adapters/observability"
	redisad "pricewatch/internal/adapters/redis"
	"pricewatch/internal/adapters/renderer"
	"pricewatch/internal/app"
	"pricewatch/internal/normalize"
	"pricewatch/internal/retry"
	"pricewatch/internal/shared"
	mysqlrepo "pricewatch/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
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
	compare := app.NewCompareService(repo, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Search: search, Compare: compare, Store: repo})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
