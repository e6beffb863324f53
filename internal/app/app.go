// Package app wires configuration into storage, cache and the ledger services
// shared by the server, the worker and ledgerctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"liquorstock/internal/config"
	"liquorstock/internal/core/tx"
	"liquorstock/internal/domain/catalogs/item"
	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/cache"
	"liquorstock/internal/infrastructure/http/v1/handlers"
	"liquorstock/internal/infrastructure/storage/memory"
	"liquorstock/internal/infrastructure/storage/mysql"
	mysqlcatalog "liquorstock/internal/infrastructure/storage/mysql/catalog_repo"
	mysqlledger "liquorstock/internal/infrastructure/storage/mysql/ledger_repo"
	"liquorstock/internal/infrastructure/storage/postgres"
	pgcatalog "liquorstock/internal/infrastructure/storage/postgres/catalog_repo"
	pgledger "liquorstock/internal/infrastructure/storage/postgres/ledger_repo"
	"liquorstock/pkg/logger"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Ledger   *ledger.Service
	Archiver *ledger.Archiver

	// Idempotency is set only for the postgres driver with IDEMPOTENCY_ENABLED.
	Idempotency *postgres.IdempotencyStore

	pgPool  *postgres.Pool
	mysqlDB *gorm.DB
	rdb     *redis.Client
}

// New connects to the configured stores and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	naming := ledger.NewNaming(cfg.TablePrefix)

	var (
		repo  ledger.Repository
		items item.Repository
		txm   tx.Manager
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, cfg.Timezone))
		if err != nil {
			return nil, err
		}
		a.pgPool = pool
		ptxm := postgres.NewTxManager(pool)
		repo, items, txm = pgledger.NewLedgerRepo(ptxm, naming), pgcatalog.NewItemRepo(ptxm), ptxm

		if cfg.IdempotencyEnabled {
			a.Idempotency = postgres.NewIdempotencyStore(ptxm, 24*time.Hour)
			if err := a.Idempotency.EnsureSchema(ctx); err != nil {
				a.Close()
				return nil, err
			}
		}
	case config.DriverMySQL:
		mcfg := mysql.DefaultConfig(cfg.MySQLDSN)
		mcfg.Location = cfg.Timezone
		db, err := mysql.Open(ctx, mcfg)
		if err != nil {
			return nil, err
		}
		a.mysqlDB = db
		mtxm := mysql.NewTxManager(db)
		repo, items, txm = mysqlledger.NewLedgerRepo(mtxm, naming), mysqlcatalog.NewItemRepo(mtxm), mtxm
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}

	var (
		stockCache ledger.StockCache = ledger.NoopStockCache{}
		locker     ledger.Locker     = memory.NewLocker()
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rdb = rdb
		stockCache = cache.NewStockCache(rdb, cfg.TablePrefix)
		locker = cache.NewLocker(rdb)
	} else {
		logger.Warn(ctx, "REDIS_ADDR not set; stock cache disabled and archive lock is process local")
	}

	clock := ledger.SystemClock(cfg.Timezone)
	a.Ledger = ledger.NewService(repo, items, txm,
		ledger.WithConfig(ledger.Config{
			Naming:         naming,
			LookbackMonths: cfg.LookbackMonths,
			CacheTTL:       cfg.CacheTTL,
		}),
		ledger.WithCache(stockCache),
		ledger.WithClock(clock),
	)
	a.Archiver = ledger.NewArchiver(repo, txm, locker,
		ledger.WithArchiverClock(clock),
		ledger.WithArchiverNaming(naming),
		ledger.WithLockTTL(cfg.ArchiveLockTTL),
	)
	return a, nil
}

// HealthChecks returns the readiness probes of the connected stores.
func (a *App) HealthChecks() map[string]handlers.Check {
	checks := make(map[string]handlers.Check)
	switch {
	case a.pgPool != nil:
		checks["database"] = a.pgPool.Ping
	case a.mysqlDB != nil:
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := a.mysqlDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	return checks
}

// PgPool returns the postgres pool, or nil for other drivers.
func (a *App) PgPool() *pgxpool.Pool {
	if a.pgPool == nil {
		return nil
	}
	return a.pgPool.Unwrap()
}

// Close releases every connection.
func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.mysqlDB != nil {
		errs = append(errs, mysql.Close(a.mysqlDB))
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	return errors.Join(errs...)
}
