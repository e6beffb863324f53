package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "LOG_LEVEL", "APP_ENV", "LEDGER_DRIVER", "DATABASE_URL", "MYSQL_DSN",
	"LEDGER_TABLE_PREFIX", "LOOKBACK_MONTHS", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"STOCK_CACHE_TTL_SECONDS", "ARCHIVE_CHECK_INTERVAL", "ARCHIVE_LOCK_TTL",
	"IDEMPOTENCY_ENABLED", "TIMEZONE",
}

func clearEnv(t *testing.T) {
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "daily_stock", cfg.TablePrefix)
	assert.Equal(t, 12, cfg.LookbackMonths)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.ArchiveCheckInterval)
	assert.Equal(t, 10*time.Minute, cfg.ArchiveLockTTL)
	assert.False(t, cfg.IdempotencyEnabled)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.True(t, cfg.Development)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "shop:pw@tcp(db:3306)/shop?parseTime=true")
	t.Setenv("LEDGER_TABLE_PREFIX", "stock")
	t.Setenv("LOOKBACK_MONTHS", "3")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("STOCK_CACHE_TTL_SECONDS", "5")
	t.Setenv("ARCHIVE_CHECK_INTERVAL", "15m")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TIMEZONE", "Asia/Kolkata")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Driver)
	assert.Equal(t, "stock", cfg.TablePrefix)
	assert.Equal(t, 3, cfg.LookbackMonths)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.ArchiveCheckInterval)
	assert.False(t, cfg.Development)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone.String())
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"DATABASE_URL": "x", "LOOKBACK_MONTHS": "twelve"}, "LOOKBACK_MONTHS"},
		{"bad duration", map[string]string{"DATABASE_URL": "x", "ARCHIVE_LOCK_TTL": "10"}, "ARCHIVE_LOCK_TTL"},
		{"bad bool", map[string]string{"DATABASE_URL": "x", "IDEMPOTENCY_ENABLED": "sometimes"}, "IDEMPOTENCY_ENABLED"},
		{"missing dsn", map[string]string{"LEDGER_DRIVER": "mysql"}, "MYSQL_DSN"},
		{"missing url", map[string]string{}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"LEDGER_DRIVER": "sqlite"}, "LEDGER_DRIVER"},
		{"idempotency on mysql", map[string]string{"LEDGER_DRIVER": "mysql", "MYSQL_DSN": "x", "IDEMPOTENCY_ENABLED": "true"}, "IDEMPOTENCY_ENABLED"},
		{"bad timezone", map[string]string{"DATABASE_URL": "x", "TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := fromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
