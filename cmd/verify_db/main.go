package main

import (
	"context"
	"fmt"
	"log"

	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	var runs, failed, snapshots, rolling int
	err = pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM load_runs),
			(SELECT count(*) FROM load_runs WHERE status = 'failed'),
			(SELECT count(*) FROM opportunity_snapshots),
			(SELECT count(*) FROM opportunity_snapshots WHERE is_rolling)
	`).Scan(&runs, &failed, &snapshots, &rolling)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Load runs: %d (%d failed)\n", runs, failed)
	fmt.Printf("Snapshot rows: %d\n", snapshots)
	fmt.Printf("Rolling deadlines: %d\n", rolling)
}
