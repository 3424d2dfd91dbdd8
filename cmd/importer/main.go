package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"propvalue/internal/adapters/observability"
	redisad "propvalue/internal/adapters/redis"
	"propvalue/internal/adapters/upstream"
	"propvalue/internal/app"
	"propvalue/internal/shared"
	mysqlrepo "propvalue/internal/storage/mysql"
)

// pageWorkers bounds how many feed pages are fetched at once; records within
// a page are imported with IMPORT_WORKERS.
const pageWorkers = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.RegisterDefault()
	observability.Serve()

	log.Info().
		Str("base", cfg.FeedBase).
		Int("workers", cfg.ImportWorkers).
		Int("pages", cfg.ImportPages).
		Str("importer", cfg.ImporterID).
		Msg("importer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	feed, err := upstream.NewFeed(cfg.FeedBase, cfg.FeedKey, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize feed client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	imp := app.NewImportService(repo, cache, cfg.ImportWorkers)

	sem := semaphore.NewWeighted(pageWorkers)
	var (
		wg         sync.WaitGroup
		imported   atomic.Int64
		failed     atomic.Int64
		emptyPages atomic.Int64
	)

	for page := 1; page <= cfg.ImportPages; page++ {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("import interrupted")
			break
		}

		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			defer sem.Release(1)

			records, err := feed.FetchListings(ctx, page)
			if err != nil {
				log.Warn().Int("page", page).Err(err).Msg("fetch page failed")
				return
			}
			if len(records) == 0 {
				emptyPages.Add(1)
				return
			}
			for i, o := range imp.Import(ctx, records, cfg.ImporterID) {
				if !o.Success {
					failed.Add(1)
					log.Warn().Int("page", page).Int("record", i).Strs("warnings", o.Warnings).Msg("record rejected")
					continue
				}
				imported.Add(1)
				if len(o.Warnings) > 0 {
					log.Debug().Int64("id", *o.PropertyID).Strs("warnings", o.Warnings).Msg("record imported with warnings")
				}
			}
			log.Info().Int("page", page).Int("records", len(records)).Msg("page imported")
		}(page)
	}

	wg.Wait()
	log.Info().
		Int64("imported", imported.Load()).
		Int64("failed", failed.Load()).
		Int64("empty_pages", emptyPages.Load()).
		Msg("import completed")
}
