// Package config reads process configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds everything the server, worker and CLI need.
type Config struct {
	Port        string
	LogLevel    string
	Development bool

	Driver      string
	DatabaseURL string
	MySQLDSN    string

	TablePrefix    string
	LookbackMonths int
	Timezone       *time.Location

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	ArchiveCheckInterval time.Duration
	ArchiveLockTTL       time.Duration

	IdempotencyEnabled bool
}

// Load reads the configuration. Missing keys take their defaults; a value
// that does not parse is an error.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	var p parser
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",

		Driver:      getEnv("LEDGER_DRIVER", DriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		MySQLDSN:    os.Getenv("MYSQL_DSN"),

		TablePrefix:    getEnv("LEDGER_TABLE_PREFIX", "daily_stock"),
		LookbackMonths: p.int("LOOKBACK_MONTHS", 12),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.int("REDIS_DB", 0),
		CacheTTL:      time.Duration(p.int("STOCK_CACHE_TTL_SECONDS", 30)) * time.Second,

		ArchiveCheckInterval: p.duration("ARCHIVE_CHECK_INTERVAL", time.Hour),
		ArchiveLockTTL:       p.duration("ARCHIVE_LOCK_TTL", 10*time.Minute),

		IdempotencyEnabled: p.bool("IDEMPOTENCY_ENABLED", false),
	}
	if p.err != nil {
		return nil, p.err
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot express as defaults.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %s", c.Driver)
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required for driver %s", c.Driver)
		}
		if c.IdempotencyEnabled {
			return fmt.Errorf("IDEMPOTENCY_ENABLED requires driver %s", DriverPostgres)
		}
	default:
		return fmt.Errorf("LEDGER_DRIVER %q: want %s or %s", c.Driver, DriverPostgres, DriverMySQL)
	}
	if c.LookbackMonths < 0 {
		return fmt.Errorf("LOOKBACK_MONTHS must not be negative")
	}
	if c.ArchiveCheckInterval <= 0 {
		return fmt.Errorf("ARCHIVE_CHECK_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser keeps the first conversion error.
type parser struct {
	err error
}

func (p *parser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" || p.err != nil {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return defaultValue
	}
	return n
}

func (p *parser) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" || p.err != nil {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return defaultValue
	}
	return b
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" || p.err != nil {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return defaultValue
	}
	return d
}
