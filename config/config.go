// Package config loads engine configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is everything the server needs to start.
type Config struct {
	Port   int
	DBPath string

	// LedgerTimezone is the zone "today" is computed in. The original
	// deployment keeps its ledger clock in Asia/Seoul.
	LedgerTimezone string

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// DefaultAnnualTotal seeds annual_total for lazily-created balance rows.
	DefaultAnnualTotal decimal.Decimal

	// HolidayRefresh is the calendar cache refresh interval. Zero disables
	// the background refresher.
	HolidayRefresh time.Duration

	// AdminKeys lists user keys granted the administrator role.
	AdminKeys []string

	LogLevel  string
	LogFormat string // "json" or "console"
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:               intEnv("PORT", 8080),
		DBPath:             stringEnv("DB_PATH", "attendance.db"),
		LedgerTimezone:     stringEnv("LEDGER_TZ", "Asia/Seoul"),
		RetryAttempts:      intEnv("RETRY_ATTEMPTS", 4),
		RetryBaseDelay:     durationEnv("RETRY_BASE_DELAY", 200*time.Millisecond),
		RetryMaxDelay:      durationEnv("RETRY_MAX_DELAY", 3*time.Second),
		HolidayRefresh:     durationEnv("HOLIDAY_REFRESH", time.Hour),
		LogLevel:           stringEnv("LOG_LEVEL", "info"),
		LogFormat:          stringEnv("LOG_FORMAT", "json"),
		DefaultAnnualTotal: decimal.NewFromInt(15),
	}

	if raw := os.Getenv("DEFAULT_ANNUAL_TOTAL"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("DEFAULT_ANNUAL_TOTAL: %w", err)
		}
		cfg.DefaultAnnualTotal = d
	}
	if raw := os.Getenv("ADMIN_KEYS"); raw != "" {
		cfg.AdminKeys = splitCSV(raw)
	}
	if _, err := time.LoadLocation(cfg.LedgerTimezone); err != nil {
		return Config{}, fmt.Errorf("LEDGER_TZ: %w", err)
	}
	return cfg, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
