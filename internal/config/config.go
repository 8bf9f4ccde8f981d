package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// DatabasePath is the SQLite file holding the precipitation dataset.
	DatabasePath string

	// StationsCSV optionally points to the station metadata file imported
	// at startup when the stations table is empty.
	StationsCSV string

	// Remote source settings.
	ChmiBaseURL string
	HTTPTimeout time.Duration
	PageDelay   time.Duration

	// FetchAt is the daily ingestion time in HH:MM (UTC).
	FetchAt string

	// Offset window for the catch-up ingestion, in days before today.
	FetchMinOffset int
	FetchMaxOffset int
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.DatabasePath = getenvDefault("DATABASE_PATH", "data/precip.db")
	cfg.StationsCSV = os.Getenv("STATIONS_CSV")
	cfg.ChmiBaseURL = os.Getenv("CHMI_BASE_URL")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	delayStr := getenvDefault("PAGE_DELAY", "500ms")
	delay, err := time.ParseDuration(delayStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PAGE_DELAY: %w", err)
	}
	cfg.PageDelay = delay

	cfg.FetchAt = getenvDefault("FETCH_AT", "02:00")
	if _, err := time.Parse("15:04", cfg.FetchAt); err != nil {
		return nil, fmt.Errorf("invalid FETCH_AT: %w", err)
	}

	cfg.FetchMinOffset = getenvInt("FETCH_MIN_OFFSET", 1)
	cfg.FetchMaxOffset = getenvInt("FETCH_MAX_OFFSET", 7)
	if cfg.FetchMinOffset < 0 || cfg.FetchMaxOffset < cfg.FetchMinOffset {
		return nil, fmt.Errorf("invalid fetch offset window [%d, %d]",
			cfg.FetchMinOffset, cfg.FetchMaxOffset)
	}

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
