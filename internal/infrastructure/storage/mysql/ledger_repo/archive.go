package ledger_repo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"

	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/storage/mysql"
	"liquorstock/pkg/logger"
)

func (r *LedgerRepo) ListCompanies(ctx context.Context) ([]int64, error) {
	q := r.builder.Select("table_name").
		From("information_schema.tables").
		Where("table_schema = DATABASE()").
		Where(squirrel.Like{"table_name": r.naming.Prefix + `\_%`})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var tables []string
	if err := r.txm.DB(ctx).Raw(sql, args...).Scan(&tables).Error; err != nil {
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
	if err := r.txm.DB(ctx).Raw(sql, args...).Scan(&months).Error; err != nil {
		return nil, fmt.Errorf("list months of %s: %w", table, err)
	}

	out := make([]ledger.StockMonth, len(months))
	for i, m := range months {
		out[i] = ledger.MonthOf(m)
	}
	return out, nil
}

// copyMonth builds INSERT INTO archive SELECT ... FROM live, skipping items
// the archive already holds.
func (r *LedgerRepo) copyMonth(live, archive string, month ledger.StockMonth) squirrel.InsertBuilder {
	cols := rowColumns(month.DaysIn())
	selected := make([]string, len(cols))
	for i, c := range cols {
		selected[i] = "l." + quote(c)
	}
	exists := fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s a WHERE a.%s = l.%s AND a.%s = l.%s)",
		quote(archive),
		quote(ledger.ColStockMonth), quote(ledger.ColStockMonth),
		quote(ledger.ColItemCode), quote(ledger.ColItemCode))

	sel := squirrel.Select(selected...).
		From(quote(live) + " l").
		Where(squirrel.Eq{"l." + quote(ledger.ColStockMonth): month.FirstDay()}).
		Where(exists)

	return r.builder.Insert(quote(archive)).
		Columns(quoteAll(cols)...).
		Select(sel)
}

func (r *LedgerRepo) CopyMonthToArchive(ctx context.Context, companyID int64, month ledger.StockMonth) (int64, error) {
	live := r.naming.LiveTable(companyID)
	archive := r.naming.ArchiveTable(companyID, month)
	n, err := r.exec(ctx, r.copyMonth(live, archive, month))
	if mysql.IsDuplicateKey(err) {
		// A concurrent copy won the race; its rows are the same rows.
		logger.Warn(ctx, "archive rows already present", "table", archive)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("copy %s into %s: %w", month, archive, err)
	}
	return n, nil
}
