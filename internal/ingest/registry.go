package ingest

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/source.yaml
var sourceYAML embed.FS

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// FetchConfig defines HTTP fetching configuration for the source.
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 30
	UserAgent      string `yaml:"user_agent,omitempty"`
	AcceptLanguage string `yaml:"accept_language,omitempty"`
	ProxyURL       string `yaml:"proxy_url,omitempty"`
}

// Timeout returns the configured timeout, defaulting to 30s.
func (c FetchConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExportConfig describes the private CSV export call.
type ExportConfig struct {
	StringifiedObjectParams string            `yaml:"stringified_object_params"`
	Headers                 map[string]string `yaml:"headers,omitempty"`
}

// SourceConfig identifies the shared view and how to talk to its host.
type SourceConfig struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	ShareURL string       `yaml:"share_url"`
	BaseURL  string       `yaml:"base_url"`
	ViewID   string       `yaml:"view_id"`
	Fetch    FetchConfig  `yaml:"fetch,omitempty"`
	Export   ExportConfig `yaml:"export"`
}

// LoadSourceConfig reads the source definition from path, or from the
// embedded default when path is empty. Environment variables in the file are
// expanded (e.g. ${SHARE_URL}).
func LoadSourceConfig(path string) (*SourceConfig, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourceYAML.ReadFile("config/source.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg SourceConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse source config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = defaultUserAgent
	}
	if cfg.Fetch.AcceptLanguage == "" {
		cfg.Fetch.AcceptLanguage = "en-US,en;q=0.9"
	}

	return &cfg, nil
}

func (c SourceConfig) validate() error {
	switch {
	case c.ShareURL == "":
		return fmt.Errorf("source config %q: share_url is required", c.ID)
	case c.BaseURL == "":
		return fmt.Errorf("source config %q: base_url is required", c.ID)
	case c.ViewID == "":
		return fmt.Errorf("source config %q: view_id is required", c.ID)
	}
	return nil
}
