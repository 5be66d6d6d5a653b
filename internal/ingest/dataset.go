package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// maxExportBytes caps the export body read into memory. Larger bodies are
// rejected rather than truncated.
const maxExportBytes = 64 << 20

// ExportURL builds the CSV download URL for the configured view. Absent
// credentials are omitted; the host then rejects the call.
func ExportURL(cfg SourceConfig, creds Credentials) string {
	q := url.Values{}
	q.Set("stringifiedObjectParams", cfg.Export.StringifiedObjectParams)
	if creds.RequestID != "" {
		q.Set("requestId", creds.RequestID)
	}
	if creds.AccessPolicy != "" {
		q.Set("accessPolicy", creds.AccessPolicy)
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	return fmt.Sprintf("%s/v0.3/view/%s/downloadCsv?%s", base, url.PathEscape(cfg.ViewID), q.Encode())
}

// ExportHeaders returns the fixed protocol headers from the source config plus
// the per-session application and page-load ids.
func ExportHeaders(cfg SourceConfig, creds Credentials) map[string]string {
	headers := make(map[string]string, len(cfg.Export.Headers)+3)
	for k, v := range cfg.Export.Headers {
		headers[k] = v
	}
	if cfg.Fetch.AcceptLanguage != "" {
		headers["Accept-Language"] = cfg.Fetch.AcceptLanguage
	}
	if creds.ApplicationID != "" {
		headers["x-airtable-application-id"] = creds.ApplicationID
	}
	if creds.PageLoadID != "" {
		headers["x-airtable-page-load-id"] = creds.PageLoadID
	}
	return headers
}

// ExportClient downloads and normalizes the view's CSV export.
type ExportClient struct {
	Fetcher  Fetcher
	Config   SourceConfig
	MaxBytes int64 // 0 means maxExportBytes
}

// FetchExport downloads the export with creds and returns the normalized
// dataset. Errors are *StageError values.
func (c *ExportClient) FetchExport(ctx context.Context, creds Credentials) (*Dataset, error) {
	doc, err := c.Fetcher.Fetch(ctx, ExportURL(c.Config, creds), ExportHeaders(c.Config, creds))
	if err != nil {
		return nil, transportError(StageExport, err)
	}
	defer doc.Body.Close()

	limit := c.MaxBytes
	if limit <= 0 {
		limit = maxExportBytes
	}
	body, err := io.ReadAll(io.LimitReader(doc.Body, limit+1))
	if err != nil {
		return nil, transportError(StageExport, fmt.Errorf("failed to read export body: %w", err))
	}
	if int64(len(body)) > limit {
		return nil, malformedError(fmt.Errorf("%w: export exceeds %d bytes", ErrMalformedDataset, limit))
	}

	table, tags, err := ParseDataset(body)
	if err != nil {
		return nil, malformedError(err)
	}

	return &Dataset{
		SourceID: c.Config.ID,
		Table:    table,
		Tags:     tags,
		LoadedAt: time.Now().UTC(),
	}, nil
}
