package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process-level settings read from the environment.
type Config struct {
	Port             string
	DatabaseURL      string // empty disables run recording
	SourceConfigPath string // empty uses the embedded source definition
	Fetcher          string // "http" or "colly"
	FetchTimeout     int    // seconds, 0 keeps the source config value
	SaveSnapshots    bool
	AdminSecret      string
	CORSOrigins      []string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Warn] Failed to read .env: %v", err)
	}

	return &Config{
		Port:             getEnv("PORT", "8081"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SourceConfigPath: getEnv("SOURCE_CONFIG", ""),
		Fetcher:          strings.ToLower(getEnv("SHARE_FETCHER", "http")),
		FetchTimeout:     getEnvInt("FETCH_TIMEOUT_SECONDS", 0),
		SaveSnapshots:    getEnvBool("SAVE_SNAPSHOTS", false),
		AdminSecret:      strings.TrimSpace(getEnv("ADMIN_SECRET", "")),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("[Warn] Ignoring invalid %s=%q", key, value)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("[Warn] Ignoring invalid %s=%q", key, value)
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
