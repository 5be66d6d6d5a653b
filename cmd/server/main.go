package main

import (
	"context"
	"log"

	"github.com/david/opportunity-finder/internal/api"
	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/ingest"
)

func main() {
	cfg := config.Load()

	source, err := ingest.LoadSourceConfig(cfg.SourceConfigPath)
	if err != nil {
		log.Fatalf("Failed to load source config: %v", err)
	}
	if cfg.FetchTimeout > 0 {
		source.Fetch.TimeoutSeconds = cfg.FetchTimeout
	}

	fetcher, err := ingest.NewFetcher(cfg.Fetcher, source.Fetch)
	if err != nil {
		log.Fatalf("Invalid SHARE_FETCHER: %v", err)
	}

	var store *db.Store
	var recorder ingest.RunRecorder
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		store = db.NewStore(pool)
		store.SaveSnapshots = cfg.SaveSnapshots
		recorder = store
	} else {
		log.Print("DATABASE_URL is not set; load runs will not be recorded")
	}

	pipeline := ingest.NewPipeline(*source, fetcher, recorder)

	srv, err := api.NewServer(pipeline, store, cfg)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}
	log.Printf("Server starting on port %s (source %s, fetcher %s)...", cfg.Port, source.ID, cfg.Fetcher)
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
