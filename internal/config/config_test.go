package config

import (
	"reflect"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "SOURCE_CONFIG", "SHARE_FETCHER", "FETCH_TIMEOUT_SECONDS", "SAVE_SNAPSHOTS", "ADMIN_SECRET", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8081" || cfg.Fetcher != "http" || cfg.FetchTimeout != 0 || cfg.SaveSnapshots {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.CORSOrigins != nil {
		t.Errorf("expected no CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SHARE_FETCHER", "Colly")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "12")
	t.Setenv("SAVE_SNAPSHOTS", "true")
	t.Setenv("ADMIN_SECRET", "  s3cret ")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.Port != "9000" || cfg.Fetcher != "colly" || cfg.FetchTimeout != 12 || !cfg.SaveSnapshots {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.AdminSecret != "s3cret" {
		t.Errorf("expected trimmed admin secret, got %q", cfg.AdminSecret)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Errorf("expected %v, got %v", want, cfg.CORSOrigins)
	}
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT_SECONDS", "soon")
	if got := getEnvInt("FETCH_TIMEOUT_SECONDS", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
}
