package ingest

import "fmt"

// NewFetcher returns the fetcher named by kind: "http" (default) or "colly".
func NewFetcher(kind string, cfg FetchConfig) (Fetcher, error) {
	switch kind {
	case "", "http":
		return NewHTTPFetcher(cfg), nil
	case "colly":
		return NewCollyFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q (want http or colly)", kind)
	}
}
