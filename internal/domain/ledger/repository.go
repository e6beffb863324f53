package ledger

import (
	"context"
	"errors"
	"time"

	"liquorstock/internal/core/types"
)

// SchemaManager owns the DDL of live and archive tables.
type SchemaManager interface {
	// EnsureLiveTable creates <prefix>_<companyId> sized for month, or adds the
	// day columns month needs when the table was created for a shorter month.
	EnsureLiveTable(ctx context.Context, companyID int64, month StockMonth) error

	// EnsureArchiveTable creates the frozen table for month sized to its day
	// count and its indexes. created is false when it already existed.
	EnsureArchiveTable(ctx context.Context, companyID int64, month StockMonth) (created bool, err error)

	// TableExists reports whether a ledger table is present.
	TableExists(ctx context.Context, table string) (bool, error)
}

// RowRepository reads and writes ledger rows.
type RowRepository interface {
	// GetRowForUpdate returns the live row locked for the rest of the
	// transaction, or nil when the item has no row for month.
	GetRowForUpdate(ctx context.Context, companyID int64, itemCode string, month StockMonth) (*DailyStockRow, error)

	// InsertRow inserts a new live row. inserted is false when a concurrent
	// writer created it first.
	InsertRow(ctx context.Context, row *DailyStockRow) (inserted bool, err error)

	// UpdateRow writes every day column and the fixed columns of row.
	UpdateRow(ctx context.Context, row *DailyStockRow) error

	// GetRow reads a row from a live or archive table without locking.
	// A missing table or row yields nil, nil.
	GetRow(ctx context.Context, ref TableRef, itemCode string, month StockMonth) (*DailyStockRow, error)
}

// ArchiveRepository supports month-end archival.
type ArchiveRepository interface {
	// ListCompanies returns the companies that have a live table.
	ListCompanies(ctx context.Context) ([]int64, error)

	// ListMonths returns the distinct stock months in the live table strictly before before.
	ListMonths(ctx context.Context, companyID int64, before StockMonth) ([]StockMonth, error)

	// CopyMonthToArchive copies the month's live rows into its archive table.
	// Rows already present are left alone.
	CopyMonthToArchive(ctx context.Context, companyID int64, month StockMonth) (copied int64, err error)
}

// Repository is the full storage contract of the ledger.
type Repository interface {
	SchemaManager
	RowRepository
	ArchiveRepository
}

// StockKey identifies a cached stock lookup.
type StockKey struct {
	CompanyID int64
	ItemCode  string
	Date      time.Time
}

// StockCache memoises StockAsOf answers between postings.
type StockCache interface {
	Get(ctx context.Context, key StockKey) (types.Quantity, bool, error)
	Set(ctx context.Context, key StockKey, q types.Quantity, ttl time.Duration) error
	// Invalidate drops every cached answer for the item.
	Invalidate(ctx context.Context, companyID int64, itemCode string) error
}

// NoopStockCache never hits.
type NoopStockCache struct{}

func (NoopStockCache) Get(context.Context, StockKey) (types.Quantity, bool, error) { return 0, false, nil }

func (NoopStockCache) Set(context.Context, StockKey, types.Quantity, time.Duration) error { return nil }

func (NoopStockCache) Invalidate(context.Context, int64, string) error { return nil }

// ErrLockNotObtained is returned by a Locker when another holder owns the key.
var ErrLockNotObtained = errors.New("lock not obtained")

// Locker serialises batch jobs across processes.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}
