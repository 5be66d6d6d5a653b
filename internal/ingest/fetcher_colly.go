package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher implements Fetcher on top of a Colly collector. It visits
// exactly one URL per call and does not retry.
type CollyFetcher struct {
	UserAgent       string
	RequestTimeout  time.Duration
	MaxBodySize     int // bytes, 0 = unlimited
	DetectCharset   bool
	IgnoreRobotsTxt bool
	ProxyURL        string // used only when Transport is nil
	Transport       http.RoundTripper
}

// NewCollyFetcher creates a CollyFetcher from the source fetch settings.
func NewCollyFetcher(cfg FetchConfig) *CollyFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &CollyFetcher{
		UserAgent:       ua,
		RequestTimeout:  cfg.Timeout(),
		MaxBodySize:     0, // the export client enforces its own cap and reports overruns
		DetectCharset:   true,
		IgnoreRobotsTxt: true,
		ProxyURL:        cfg.ProxyURL,
		Transport:       newGuardedTransport(cfg),
	}
}

func (f *CollyFetcher) buildCollector(ctx context.Context, host string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.AllowedDomains(host),
		colly.StdlibContext(ctx),
	}
	if f.DetectCharset {
		opts = append(opts, colly.DetectCharset())
	}
	if f.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}

	c := colly.NewCollector(opts...)
	if f.Transport != nil {
		c.WithTransport(f.Transport)
	} else if f.ProxyURL != "" {
		_ = c.SetProxy(f.ProxyURL)
	}
	c.SetRequestTimeout(f.RequestTimeout)
	return c
}

func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string, headers map[string]string) (*FetchedDocument, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	c := f.buildCollector(ctx, parsedURL.Hostname())

	var result *FetchedDocument
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		result = &FetchedDocument{
			URL:         targetURL,
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{StatusCode: r.StatusCode}
			return
		}
		fetchErr = fmt.Errorf("failed to execute request: %w", redactURLError(err))
	})

	if err := c.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("visit failed: %w", redactURLError(err))
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if result == nil {
		return nil, fmt.Errorf("no response received from %s", parsedURL.Host)
	}

	return result, nil
}
