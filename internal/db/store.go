package db

import (
	"context"
	"fmt"

	"github.com/david/opportunity-finder/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	// SaveSnapshots controls whether RecordRun also stores the loaded rows.
	SaveSnapshots bool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertRunSQL = `
	INSERT INTO load_runs (
		run_id, source_id, status, failed_stage, error_kind, error,
		rows_loaded, tags_loaded, missing_credentials, started_at, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const insertSnapshotSQL = `
	INSERT INTO opportunity_snapshots (
		run_id, row_index, sponsor, opportunity_name, url, amount,
		deadline_at, deadline_type, is_rolling, tags, fields
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// RecordRun stores the run and, when snapshots are enabled and the run
// succeeded, its rows, in one transaction.
func (s *Store) RecordRun(ctx context.Context, run models.LoadRun, opportunities []models.Opportunity) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		missing := run.MissingCredentials
		if missing == nil {
			missing = []string{}
		}
		_, err := tx.Exec(ctx, insertRunSQL,
			run.ID,
			run.SourceID,
			run.Status,
			nilIfEmpty(run.FailedStage),
			nilIfEmpty(run.ErrorKind),
			nilIfEmpty(run.Error),
			run.RowsLoaded,
			run.TagsLoaded,
			missing,
			run.StartedAt,
			run.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("insert load run: %w", err)
		}

		if !s.SaveSnapshots || run.Status != "completed" || len(opportunities) == 0 {
			return nil
		}

		batch := buildSnapshotBatch(run, opportunities)
		results := tx.SendBatch(ctx, batch)
		for range opportunities {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert snapshot row: %w", err)
			}
		}
		return results.Close()
	})
}

func buildSnapshotBatch(run models.LoadRun, opportunities []models.Opportunity) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, o := range opportunities {
		tags := o.Tags
		if tags == nil {
			tags = []string{}
		}
		fields := o.Fields
		if fields == nil {
			fields = map[string]string{}
		}
		batch.Queue(insertSnapshotSQL,
			run.ID,
			o.Index,
			nilIfEmpty(o.Sponsor),
			nilIfEmpty(o.OpportunityName),
			nilIfEmpty(o.URL),
			nilIfEmpty(o.Amount),
			o.DeadlineAt,
			nilIfEmpty(o.DeadlineType),
			o.IsRolling,
			tags,
			fields,
		)
	}
	return batch
}

// ListRuns returns the most recent load runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.LoadRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, source_id, status, COALESCE(failed_stage, ''), COALESCE(error_kind, ''), COALESCE(error, ''),
			rows_loaded, tags_loaded, missing_credentials, started_at, completed_at
		FROM load_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list load runs: %w", err)
	}
	defer rows.Close()

	var runs []models.LoadRun
	for rows.Next() {
		var r models.LoadRun
		if err := rows.Scan(&r.ID, &r.SourceID, &r.Status, &r.FailedStage, &r.ErrorKind, &r.Error,
			&r.RowsLoaded, &r.TagsLoaded, &r.MissingCredentials, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan load run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
