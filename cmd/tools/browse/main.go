package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/david/opportunity-finder/internal/browse"
	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	var tags, contains, exact listFlag
	flag.Var(&tags, "tag", "Keep rows with this tag (repeatable, any-of)")
	flag.Var(&contains, "contains", "column=term substring filter (repeatable)")
	flag.Var(&exact, "exact", "column=value exact filter (repeatable)")
	from := flag.String("from", "", "Earliest deadline, MM/DD/YYYY")
	to := flag.String("to", "", "Latest deadline, MM/DD/YYYY")
	detail := flag.Int("detail", -1, "Print the detail card for this row index")
	limit := flag.Int("limit", 50, "Maximum rows to list")
	flag.Parse()

	filters, err := buildFilters(tags, contains, exact, *from, *to)
	if err != nil {
		log.Fatal(err)
	}

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
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ds, err := ingest.NewPipeline(*source, fetcher, nil).Load(ctx)
	if err != nil {
		log.Fatalf("Load failed (%s): %v", ingest.ErrorKind(err), err)
	}

	if *detail >= 0 {
		if *detail >= len(ds.Table.Rows) {
			log.Fatalf("Row %d out of range (have %d rows)", *detail, len(ds.Table.Rows))
		}
		printCard(browse.NewCard(ds.Table.Columns, ds.Table.Rows[*detail]))
		return
	}

	matches := browse.Apply(ds.Table, filters...)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Sponsor", "Opportunity", "Amount", "Deadline", "Tags"})
	for n, i := range matches {
		if n >= *limit {
			break
		}
		row := ds.Table.Rows[i]
		deadline := "Rolling"
		if row.Deadline != nil {
			deadline = ingest.FormatDeadline(*row.Deadline)
		}
		t.AppendRow(table.Row{
			i,
			row.Get(ingest.ColumnSponsor),
			text.Trim(row.Get(ingest.ColumnOpportunityName), 60),
			row.Get(ingest.ColumnAmount),
			deadline,
			strings.Join(row.Tags, ", "),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Matches", fmt.Sprintf("%d of %d", len(matches), len(ds.Table.Rows))})
	t.Render()
}

func buildFilters(tags, contains, exact []string, from, to string) ([]browse.Filter, error) {
	var filters []browse.Filter
	if len(tags) > 0 {
		filters = append(filters, browse.Tags(tags...))
	}
	for _, raw := range contains {
		col, term, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("-contains wants column=term, got %q", raw)
		}
		filters = append(filters, browse.Contains(ingest.NormalizeColumnName(col), term))
	}
	for _, raw := range exact {
		col, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("-exact wants column=value, got %q", raw)
		}
		filters = append(filters, browse.Exact(ingest.NormalizeColumnName(col), value))
	}

	var lo, hi time.Time
	if from != "" {
		d := ingest.ParseDeadline(from)
		if d == nil {
			return nil, fmt.Errorf("invalid -from date %q", from)
		}
		lo = *d
	}
	if to != "" {
		d := ingest.ParseDeadline(to)
		if d == nil {
			return nil, fmt.Errorf("invalid -to date %q", to)
		}
		hi = *d
	}
	if !lo.IsZero() || !hi.IsZero() {
		filters = append(filters, browse.DeadlineBetween(lo, hi))
	}
	return filters, nil
}

func printCard(card browse.DetailCard) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(card.Title)
	if card.URL != "" {
		t.AppendRow(table.Row{"URL", card.URL})
	}
	if card.Amount != "" {
		t.AppendRow(table.Row{"AMOUNT", card.Amount})
	}
	t.AppendRow(table.Row{"DEADLINE", card.Deadline})
	if card.Eligibility != "" {
		t.AppendRow(table.Row{"ELIGIBILITY REQUIREMENTS", text.WrapSoft(card.Eligibility, 80)})
	}
	for _, f := range card.Extra {
		t.AppendRow(table.Row{f.Name, text.WrapSoft(f.Value, 80)})
	}
	if card.Description != "" {
		t.AppendRow(table.Row{"DESCRIPTION", text.WrapSoft(card.Description, 80)})
	}
	t.Render()
}
