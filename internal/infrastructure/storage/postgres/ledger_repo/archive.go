package ledger_repo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"liquorstock/internal/domain/ledger"
)

func (r *LedgerRepo) ListCompanies(ctx context.Context) ([]int64, error) {
	q := r.builder.Select("table_name").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(squirrel.Like{"table_name": r.naming.Prefix + `\_%`})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var tables []string
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &tables, sql, args...); err != nil {
		return nil, fmt.Errorf("list ledger tables: %w", err)
	}

	var out []int64
	for _, t := range tables {
		if id, ok := r.naming.ParseLiveTable(t); ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *LedgerRepo) ListMonths(ctx context.Context, companyID int64, before ledger.StockMonth) ([]ledger.StockMonth, error) {
	table := r.naming.LiveTable(companyID)
	exists, err := r.TableExists(ctx, table)
	if err != nil || !exists {
		return nil, err
	}

	col := quote(ledger.ColStockMonth)
	q := r.builder.Select("DISTINCT " + col).
		From(quote(table)).
		Where(squirrel.Lt{col: before.FirstDay()}).
		OrderBy(col)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var months []time.Time
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &months, sql, args...); err != nil {
		return nil, fmt.Errorf("list months of %s: %w", table, err)
	}

	out := make([]ledger.StockMonth, len(months))
	for i, m := range months {
		out[i] = ledger.MonthOf(m)
	}
	return out, nil
}

// copyMonth builds INSERT INTO archive SELECT ... FROM live for one month.
// Rows already archived are skipped by the unique index.
func (r *LedgerRepo) copyMonth(live, archive string, month ledger.StockMonth) squirrel.InsertBuilder {
	cols := quoteAll(rowColumns(month.DaysIn()))
	// The outer builder numbers the placeholders.
	sel := squirrel.Select(cols...).
		From(quote(live)).
		Where(squirrel.Eq{quote(ledger.ColStockMonth): month.FirstDay()}).
		OrderBy(quote(ledger.ColItemCode))

	return r.builder.Insert(quote(archive)).
		Columns(cols...).
		Select(sel).
		Suffix(fmt.Sprintf("ON CONFLICT (%s, %s) DO NOTHING", quote(ledger.ColStockMonth), quote(ledger.ColItemCode)))
}

func (r *LedgerRepo) CopyMonthToArchive(ctx context.Context, companyID int64, month ledger.StockMonth) (int64, error) {
	live := r.naming.LiveTable(companyID)
	archive := r.naming.ArchiveTable(companyID, month)
	n, err := r.exec(ctx, r.copyMonth(live, archive, month))
	if err != nil {
		return 0, fmt.Errorf("copy %s into %s: %w", month, archive, err)
	}
	return n, nil
}
