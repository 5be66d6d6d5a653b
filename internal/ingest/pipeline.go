package ingest

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/david/opportunity-finder/internal/models"
	"github.com/google/uuid"
)

// RunRecorder persists the outcome of a load. Recording is best-effort.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.LoadRun, opportunities []models.Opportunity) error
}

type Pipeline struct {
	Config   SourceConfig
	Fetcher  Fetcher
	Recorder RunRecorder
}

func NewPipeline(cfg SourceConfig, fetcher Fetcher, recorder RunRecorder) *Pipeline {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(cfg.Fetch)
	}
	return &Pipeline{
		Config:   cfg,
		Fetcher:  fetcher,
		Recorder: recorder,
	}
}

// Load runs a full cycle: scrape fresh credentials from the share page, then
// download and normalize the export. Nothing is cached between calls and a
// failed cycle is never retried.
func (p *Pipeline) Load(ctx context.Context) (*Dataset, error) {
	run := models.LoadRun{
		ID:        uuid.New(),
		SourceID:  p.Config.ID,
		StartedAt: time.Now().UTC(),
	}

	log.Printf("[Pipeline] Starting load for source: %s (%s)", p.Config.Name, p.Config.ID)
	ds, err := p.load(ctx, &run)

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = "failed"
		run.ErrorKind = ErrorKind(err)
		run.Error = err.Error()
		var se *StageError
		if errors.As(err, &se) {
			run.FailedStage = string(se.Stage)
		}
		log.Printf("[Pipeline] Load failed for %s after %s: %v", p.Config.ID, completed.Sub(run.StartedAt).Round(time.Millisecond), err)
	} else {
		run.Status = "completed"
		run.RowsLoaded = len(ds.Table.Rows)
		run.TagsLoaded = len(ds.Tags)
		log.Printf("[Pipeline] Load complete for %s: %d rows, %d tags in %s", p.Config.ID, run.RowsLoaded, run.TagsLoaded, completed.Sub(run.StartedAt).Round(time.Millisecond))
	}

	p.record(ctx, run, ds)
	return ds, err
}

func (p *Pipeline) load(ctx context.Context, run *models.LoadRun) (*Dataset, error) {
	extractor := &Extractor{Fetcher: p.Fetcher, Config: p.Config}
	creds, err := extractor.Extract(ctx)
	if err != nil {
		return nil, err
	}

	// Values are session tokens; only their presence is logged.
	if missing := creds.Missing(); len(missing) > 0 {
		run.MissingCredentials = missing
		log.Printf("[Airtable] Share page yielded no value for: %s", strings.Join(missing, ", "))
	}

	client := &ExportClient{Fetcher: p.Fetcher, Config: p.Config}
	return client.FetchExport(ctx, creds)
}

func (p *Pipeline) record(ctx context.Context, run models.LoadRun, ds *Dataset) {
	if p.Recorder == nil {
		return
	}
	var opportunities []models.Opportunity
	if ds != nil {
		opportunities = ToModels(ds.Table)
	}
	if err := p.Recorder.RecordRun(ctx, run, opportunities); err != nil {
		log.Printf("[Warn] Failed to record load run %s: %v", run.ID, err)
	}
}

// ToModel converts a row into its JSON/storage shape.
func ToModel(index int, row Row) models.Opportunity {
	fields := make(map[string]string, len(row.Values))
	for k, v := range row.Values {
		fields[k] = v
	}
	tags := row.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Opportunity{
		Index:           index,
		Sponsor:         row.Get(ColumnSponsor),
		OpportunityName: row.Get(ColumnOpportunityName),
		URL:             row.Get(ColumnURL),
		Tags:            tags,
		Amount:          row.Get(ColumnAmount),
		DeadlineAt:      row.Deadline,
		DeadlineType:    row.Get(ColumnDeadlineType),
		IsRolling:       row.IsRolling(),
		Eligibility:     row.Get(ColumnEligibilityRequirements),
		Description:     row.Get(ColumnDescription),
		Fields:          fields,
	}
}

// ToModels converts every row of t, keeping row indices.
func ToModels(t Table) []models.Opportunity {
	out := make([]models.Opportunity, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = ToModel(i, row)
	}
	return out
}
