package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/david/opportunity-finder/internal/models"
	"github.com/google/uuid"
)

func TestBuildSnapshotBatch(t *testing.T) {
	run := models.LoadRun{ID: uuid.New(), Status: "completed"}
	opps := []models.Opportunity{
		{Index: 0, Sponsor: "NIH", Tags: []string{"health"}},
		{Index: 1, OpportunityName: "Seed Fund"},
	}

	batch := buildSnapshotBatch(run, opps)
	if batch.Len() != len(opps) {
		t.Fatalf("expected %d queued inserts, got %d", len(opps), batch.Len())
	}
}

func TestNilIfEmpty(t *testing.T) {
	if nilIfEmpty("") != nil {
		t.Error("expected empty string to map to nil")
	}
	if nilIfEmpty("x") != "x" {
		t.Error("expected non-empty string to pass through")
	}
}

func TestMigrationFiles_Ordered(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) < 2 || files[0] != "001_load_runs.sql" {
		t.Fatalf("unexpected migration order: %v", files)
	}
}

// TestStore_RecordAndList needs a live database; set TEST_DATABASE_URL to run it.
func TestStore_RecordAndList(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	defer pool.Close()

	if err := ApplyMigrations(ctx, pool); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	store := NewStore(pool)
	store.SaveSnapshots = true

	completed := time.Now().UTC()
	run := models.LoadRun{
		ID:          uuid.New(),
		SourceID:    "test-source",
		Status:      "completed",
		RowsLoaded:  1,
		TagsLoaded:  1,
		StartedAt:   completed.Add(-time.Second),
		CompletedAt: &completed,
	}
	opps := []models.Opportunity{{Index: 0, Sponsor: "NIH", Tags: []string{"health"}, Fields: map[string]string{"SPONSOR": "NIH"}}}

	if err := store.RecordRun(ctx, run, opps); err != nil {
		t.Fatalf("record run failed: %v", err)
	}
	defer pool.Exec(context.Background(), "DELETE FROM load_runs WHERE run_id = $1", run.ID)

	runs, err := store.ListRuns(ctx, 100)
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	found := false
	for _, r := range runs {
		if r.ID == run.ID {
			found = true
			if r.RowsLoaded != 1 || r.Status != "completed" {
				t.Errorf("unexpected stored run %+v", r)
			}
		}
	}
	if !found {
		t.Errorf("expected run %s in listing", run.ID)
	}
}
