package ingest

import (
	"context"
	"io"
	"time"
)

// Well-known columns of the normalized opportunity table.
const (
	ColumnSponsor                 = "SPONSOR"
	ColumnOpportunityName         = "OPPORTUNITY_NAME"
	ColumnURL                     = "URL"
	ColumnTags                    = "TAGS"
	ColumnAmount                  = "AMOUNT"
	ColumnDuration                = "DURATION"
	ColumnDeadline                = "DEADLINE"
	ColumnDeadlineType            = "DEADLINE_TYPE"
	ColumnEligibilityRequirements = "ELIGIBILITY_REQUIREMENTS"
	ColumnDescription             = "DESCRIPTION"
)

// Credentials are the short-lived session values scraped from the share page.
// An empty field means the value could not be extracted.
type Credentials struct {
	RequestID     string
	AccessPolicy  string
	ApplicationID string
	PageLoadID    string
}

// Missing returns the names of the fields that are absent.
func (c Credentials) Missing() []string {
	var missing []string
	if c.ApplicationID == "" {
		missing = append(missing, "application_id")
	}
	if c.PageLoadID == "" {
		missing = append(missing, "page_load_id")
	}
	if c.RequestID == "" {
		missing = append(missing, "request_id")
	}
	if c.AccessPolicy == "" {
		missing = append(missing, "access_policy")
	}
	return missing
}

// Row is one opportunity record. Values holds every non-empty cell keyed by
// normalized column name; an absent key means the cell was empty.
type Row struct {
	Values   map[string]string
	Deadline *time.Time // nil means rolling
	Tags     []string
}

// Get returns the cell value for column, or "" when absent.
func (r Row) Get(column string) string {
	return r.Values[column]
}

// Has reports whether the cell for column is present.
func (r Row) Has(column string) bool {
	_, ok := r.Values[column]
	return ok
}

// IsRolling reports whether the row has no parseable deadline.
func (r Row) IsRolling() bool {
	return r.Deadline == nil
}

// Table is the normalized dataset with its columns in header order.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table carries the named column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Dataset is the artifact handed to the presentation layer.
type Dataset struct {
	SourceID string
	Table    Table
	Tags     []string
	LoadedAt time.Time
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL, sending the given request headers.
// A non-2xx response is reported as a *StatusError.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*FetchedDocument, error)
}
