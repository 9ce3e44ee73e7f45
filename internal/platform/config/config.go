package config

import (
	"os"
	"strconv"
	"time"
)

// Migration captures process-level configuration for a migration run.
// Per-project knobs (batch size, overwrite behavior) live in the mapping
// document; this covers the environment the run executes in.
type Migration struct {
	RedcapURL      string
	APIToken       string
	CursorPath     string
	MetricsAddr    string // empty disables the progress/metrics listener
	Workers        int
	MaxAttempts    int
	SubmitRate     int // submissions allowed per rate window
	RateWindow     time.Duration
	RequestTimeout time.Duration
	AsOfYear       int // reference year for calculated fields
	PostgresDSN    string
	RedisURL       string
}

// FromEnv builds a Migration config from environment variables so main stays lean.
func FromEnv() Migration {
	return Migration{
		RedcapURL:      os.Getenv("REDMIG_REDCAP_URL"),
		APIToken:       os.Getenv("REDMIG_API_TOKEN"),
		CursorPath:     envOr("REDMIG_CURSOR_PATH", "redmig-cursor.json"),
		MetricsAddr:    os.Getenv("REDMIG_METRICS_ADDR"),
		Workers:        envInt("REDMIG_WORKERS", 4),
		MaxAttempts:    envInt("REDMIG_MAX_ATTEMPTS", 3),
		SubmitRate:     envInt("REDMIG_SUBMIT_RATE", 30),
		RateWindow:     envDuration("REDMIG_RATE_WINDOW", time.Second),
		RequestTimeout: envDuration("REDMIG_REQUEST_TIMEOUT", 30*time.Second),
		AsOfYear:       envInt("REDMIG_AS_OF_YEAR", time.Now().Year()),
		PostgresDSN:    os.Getenv("REDMIG_POSTGRES_DSN"),
		RedisURL:       os.Getenv("REDMIG_REDIS_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
