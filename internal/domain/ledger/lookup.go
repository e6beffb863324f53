package ledger

import (
	"context"
	"fmt"
	"time"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/core/types"
	"liquorstock/pkg/logger"
)

// StockAsOf returns the stock of an item at the end of date.
//
// The row for date's month is scanned backward from date's day and the first
// positive closing wins, so a day without a posting reports the latest
// non-zero stock before it. When no day qualifies the answer is 0. A month
// without a row falls back to earlier months, at most LookbackMonths back.
func (s *Service) StockAsOf(ctx context.Context, companyID int64, itemCode string, date time.Time) (types.Quantity, error) {
	ctx, span := tracer.Start(ctx, "ledger.StockAsOf")
	defer span.End()

	if companyID <= 0 {
		return 0, apperror.NewValidation("company id must be positive").WithDetail("company_id", companyID)
	}
	if itemCode == "" {
		return 0, apperror.NewValidation("item code is required")
	}
	if date.IsZero() {
		return 0, apperror.NewValidation("date is required")
	}

	key := StockKey{CompanyID: companyID, ItemCode: itemCode, Date: dateOnly(date)}
	if q, ok, err := s.cache.Get(ctx, key); err != nil {
		logger.Warn(ctx, "stock cache read failed", "item_code", itemCode, "error", err)
	} else if ok {
		return q, nil
	}

	var q types.Quantity
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		q, err = s.lookup(ctx, companyID, itemCode, date)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if err := s.cache.Set(ctx, key, q, s.cfg.CacheTTL); err != nil {
		logger.Warn(ctx, "stock cache write failed", "item_code", itemCode, "error", err)
	}
	return q, nil
}

func (s *Service) lookup(ctx context.Context, companyID int64, itemCode string, date time.Time) (types.Quantity, error) {
	month := MonthOf(date)
	row, err := s.findRow(ctx, companyID, itemCode, month)
	if err != nil {
		return 0, err
	}
	if row != nil {
		return scanBack(row, date.Day()), nil
	}

	m := month
	for i := 0; i < s.cfg.LookbackMonths; i++ {
		m = m.Prev()
		row, err := s.findRow(ctx, companyID, itemCode, m)
		if err != nil {
			return 0, err
		}
		if row != nil {
			return scanBack(row, row.Len()), nil
		}
	}
	return 0, nil
}

// scanBack walks closings from day down to 1 and returns the first positive
// one. Zero when none is positive.
func scanBack(row *DailyStockRow, day int) types.Quantity {
	if day > row.Len() {
		day = row.Len()
	}
	for d := day; d >= 1; d-- {
		if c := row.Days[d-1].Closing; c > 0 {
			return c
		}
	}
	return 0
}

// findRow reads an item's row for month from wherever it lives.
func (s *Service) findRow(ctx context.Context, companyID int64, itemCode string, month StockMonth) (*DailyStockRow, error) {
	ref, err := s.resolveTable(ctx, companyID, month)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetRow(ctx, ref, itemCode, month)
	if err != nil {
		return nil, fmt.Errorf("get ledger row %s %s: %w", ref.Name, month, err)
	}
	return row, nil
}

// resolveTable picks the table for month: the archive when it exists,
// otherwise the live table. The current month always reads live.
func (s *Service) resolveTable(ctx context.Context, companyID int64, month StockMonth) (TableRef, error) {
	if !month.Before(MonthOf(s.clock.Now())) {
		return s.cfg.Naming.Live(companyID), nil
	}
	archived, err := s.repo.TableExists(ctx, s.cfg.Naming.ArchiveTable(companyID, month))
	if err != nil {
		return TableRef{}, fmt.Errorf("check archive: %w", err)
	}
	if archived {
		return s.cfg.Naming.Archived(companyID, month), nil
	}
	return s.cfg.Naming.Live(companyID), nil
}
