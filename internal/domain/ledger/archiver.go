package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/core/tx"
	"liquorstock/pkg/logger"
)

// ArchiveResult reports one archived month.
type ArchiveResult struct {
	CompanyID    int64
	Month        StockMonth
	Table        string
	TableCreated bool
	RowsCopied   int64
}

// Archiver freezes past months into per-month tables.
type Archiver struct {
	repo    Repository
	txm     tx.Manager
	locker  Locker
	clock   Clock
	naming  Naming
	lockTTL time.Duration
}

// ArchiverOption customises an Archiver.
type ArchiverOption func(*Archiver)

// WithArchiverClock replaces the wall clock.
func WithArchiverClock(c Clock) ArchiverOption { return func(a *Archiver) { a.clock = c } }

// WithArchiverNaming replaces the default table naming.
func WithArchiverNaming(n Naming) ArchiverOption { return func(a *Archiver) { a.naming = n } }

// WithLockTTL sets how long a company lock is held before it expires.
func WithLockTTL(ttl time.Duration) ArchiverOption { return func(a *Archiver) { a.lockTTL = ttl } }

// NewArchiver creates an archiver. locker serialises runs per company across workers.
func NewArchiver(repo Repository, txm tx.Manager, locker Locker, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		repo:    repo,
		txm:     txm,
		locker:  locker,
		clock:   SystemClock(nil),
		naming:  NewNaming(""),
		lockTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveMonth creates the archive table for month, sized to its day count,
// and copies the month's live rows into it. Running it again copies nothing.
func (a *Archiver) ArchiveMonth(ctx context.Context, companyID int64, month StockMonth) (*ArchiveResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.ArchiveMonth", trace.WithAttributes(
		attribute.Int64("company_id", companyID),
		attribute.String("month", month.String()),
	))
	defer span.End()

	if !month.Before(MonthOf(a.clock.Now())) {
		return nil, apperror.NewValidation("only months before the current month can be archived").
			WithDetail("month", month.String())
	}

	res := &ArchiveResult{
		CompanyID: companyID,
		Month:     month,
		Table:     a.naming.ArchiveTable(companyID, month),
	}
	created, err := a.repo.EnsureArchiveTable(ctx, companyID, month)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create %s: %w", res.Table, err)
	}
	res.TableCreated = created

	err = a.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		res.RowsCopied, err = a.repo.CopyMonthToArchive(ctx, companyID, month)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("archive %s for company %d: %w", month, companyID, err)
	}

	logger.Info(ctx, "archived stock month",
		"company_id", companyID,
		"month", month.String(),
		"table", res.Table,
		"table_created", res.TableCreated,
		"rows_copied", res.RowsCopied,
	)
	return res, nil
}

// ArchiveDue archives every month of the company's live table that is before
// the current month and has no archive table yet. It returns nil results when
// another worker holds the company lock.
func (a *Archiver) ArchiveDue(ctx context.Context, companyID int64) ([]ArchiveResult, error) {
	lock, err := a.locker.Obtain(ctx, fmt.Sprintf("archive:%d", companyID), a.lockTTL)
	if errors.Is(err, ErrLockNotObtained) {
		logger.Debug(ctx, "archive lock held elsewhere", "company_id", companyID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("obtain archive lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "release archive lock", "company_id", companyID, "error", err)
		}
	}()

	months, err := a.repo.ListMonths(ctx, companyID, MonthOf(a.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("list months for company %d: %w", companyID, err)
	}

	var out []ArchiveResult
	for _, m := range months {
		exists, err := a.repo.TableExists(ctx, a.naming.ArchiveTable(companyID, m))
		if err != nil {
			return out, fmt.Errorf("check archive: %w", err)
		}
		if exists {
			continue
		}
		res, err := a.ArchiveMonth(ctx, companyID, m)
		if err != nil {
			return out, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// RunDue archives due months for every company with a live table. A failing
// company does not stop the others; the errors are joined.
func (a *Archiver) RunDue(ctx context.Context) ([]ArchiveResult, error) {
	companies, err := a.repo.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	var (
		out  []ArchiveResult
		errs []error
	)
	for _, companyID := range companies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := a.ArchiveDue(ctx, companyID)
		out = append(out, res...)
		if err != nil {
			logger.Error(ctx, "archive run failed", "company_id", companyID, "error", err)
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}
