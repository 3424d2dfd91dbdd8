package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "propvalue/internal/adapters/http_server"
	"propvalue/internal/adapters/llm"
	"propvalue/internal/adapters/observability"
	redisad "propvalue/internal/adapters/redis"
	"propvalue/internal/adapters/upstream"
	"propvalue/internal/app"
	"propvalue/internal/shared"
	mysqlrepo "propvalue/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

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
	if err := cache.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; cache and notifications degraded")
	}
	stats, err := upstream.NewAreaStats(cfg.StatsBase, cfg.StatsKey, cfg.StatsRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize area statistics client")
	}
	text, err := llm.New(cfg.AnthropicKey, cfg.AnthropicModel, cfg.LLMMaxTokens)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize text generator")
	}

	q := app.NewQueryService(repo, repo, cache, cfg.CacheTTL)
	reports := app.NewReportService(app.ReportDeps{
		Comparables: q,
		Stats:       stats,
		Text:        text,
		Reports:     repo,
		Notifier:    redisad.NewNotifier(cache.Client(), cfg.NotifyChannel),
	}, app.ReportConfig{ProviderTimeout: cfg.ProviderTimeout})
	imports := app.NewImportService(repo, cache, cfg.ImportWorkers)

	// http
	srv := server.New(cfg.HTTPTimeout)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Reports: reports, Imports: imports})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	reports.Close() // flush pending notifications
	_ = db.Close()
	log.Info().Msg("API stopped")
}
