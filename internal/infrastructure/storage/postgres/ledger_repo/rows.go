package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/core/types"
	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/storage/postgres"
)

// readableDays is how many of month's days can be selected from table. A live
// table created for a shorter month may lack the trailing day columns; those
// days read as zero.
func (r *LedgerRepo) readableDays(ctx context.Context, table string, month ledger.StockMonth) (int, error) {
	want := month.DaysIn()
	have, err := r.tableDays(ctx, table)
	if err != nil {
		return 0, err
	}
	if have > 0 && have < want {
		// Another process may have widened it since we cached.
		r.dayCols.Delete(table)
		if have, err = r.tableDays(ctx, table); err != nil {
			return 0, err
		}
	}
	return min(have, want), nil
}

// selectRow builds the row query for (month, item) reading days day sets.
func (r *LedgerRepo) selectRow(table string, itemCode string, month ledger.StockMonth, days int) squirrel.SelectBuilder {
	return r.builder.Select(quoteAll(rowColumns(days))...).
		From(quote(table)).
		Where(squirrel.Eq{
			quote(ledger.ColStockMonth): month.FirstDay(),
			quote(ledger.ColItemCode):   itemCode,
		})
}

// scanRow reads one row in rowColumns(days) order. Days beyond days stay zero.
func scanRow(row pgx.Row, companyID int64, month ledger.StockMonth, days int) (*ledger.DailyStockRow, error) {
	var (
		itemCode    string
		stockMonth  time.Time
		throughDay  int
		lastUpdated time.Time
	)
	vals := make([]int64, days*4)
	dest := make([]any, 0, 4+len(vals))
	dest = append(dest, &itemCode, &stockMonth, &throughDay, &lastUpdated)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	out := ledger.NewRow(companyID, itemCode, month, 0)
	for d := 0; d < days; d++ {
		out.Days[d] = ledger.DayBalance{
			Open:     types.Quantity(vals[d*4]),
			Purchase: types.Quantity(vals[d*4+1]),
			Sale:     types.Quantity(vals[d*4+2]),
			Closing:  types.Quantity(vals[d*4+3]),
		}
	}
	out.ThroughDay = min(throughDay, out.Len())
	out.LastUpdated = lastUpdated
	return out, nil
}

func (r *LedgerRepo) getRow(ctx context.Context, table string, companyID int64, itemCode string, month ledger.StockMonth, forUpdate bool) (*ledger.DailyStockRow, error) {
	days, err := r.readableDays(ctx, table, month)
	if err != nil {
		return nil, err
	}
	if days == 0 {
		return nil, nil
	}

	q := r.selectRow(table, itemCode, month, days)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	row, err := scanRow(r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...), companyID, month, days)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if forUpdate && isLockConflict(err) {
		return nil, apperror.NewConflict("item " + itemCode + " is being posted by another request").
			WithDetail("item_code", itemCode)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s %s/%s: %w", table, itemCode, month, err)
	}
	return row, nil
}

func (r *LedgerRepo) GetRowForUpdate(ctx context.Context, companyID int64, itemCode string, month ledger.StockMonth) (*ledger.DailyStockRow, error) {
	return r.getRow(ctx, r.naming.LiveTable(companyID), companyID, itemCode, month, true)
}

func (r *LedgerRepo) GetRow(ctx context.Context, ref ledger.TableRef, itemCode string, month ledger.StockMonth) (*ledger.DailyStockRow, error) {
	return r.getRow(ctx, ref.Name, ref.CompanyID, itemCode, month, false)
}

func (r *LedgerRepo) InsertRow(ctx context.Context, row *ledger.DailyStockRow) (bool, error) {
	table := r.naming.LiveTable(row.CompanyID)
	q := r.builder.Insert(quote(table)).
		Columns(quoteAll(rowColumns(row.Len()))...).
		Values(rowValues(row)...).
		Suffix(fmt.Sprintf("ON CONFLICT (%s, %s) DO NOTHING", quote(ledger.ColStockMonth), quote(ledger.ColItemCode)))

	n, err := r.exec(ctx, q)
	if err != nil {
		return false, fmt.Errorf("insert %s %s/%s: %w", table, row.ItemCode, row.Month, err)
	}
	return n > 0, nil
}

// updateRow builds the UPDATE writing every column of row.
func (r *LedgerRepo) updateRow(table string, row *ledger.DailyStockRow) squirrel.UpdateBuilder {
	q := r.builder.Update(quote(table)).
		Set(quote(ledger.ColThroughDay), row.ThroughDay).
		Set(quote(ledger.ColLastUpdated), row.LastUpdated)
	for i, d := range row.Days {
		cols := ledger.DayColumns(i + 1)
		q = q.Set(quote(cols.Open), d.Open.Int64()).
			Set(quote(cols.Purchase), d.Purchase.Int64()).
			Set(quote(cols.Sales), d.Sale.Int64()).
			Set(quote(cols.Closing), d.Closing.Int64())
	}
	return q.Where(squirrel.Eq{
		quote(ledger.ColStockMonth): row.Month.FirstDay(),
		quote(ledger.ColItemCode):   row.ItemCode,
	})
}

func (r *LedgerRepo) UpdateRow(ctx context.Context, row *ledger.DailyStockRow) error {
	table := r.naming.LiveTable(row.CompanyID)
	n, err := r.exec(ctx, r.updateRow(table, row))
	if err != nil {
		return fmt.Errorf("update %s %s/%s: %w", table, row.ItemCode, row.Month, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s %s/%s: row not found", table, row.ItemCode, row.Month)
	}
	return nil
}

// isLockConflict reports a row lock that lost to a concurrent posting.
func isLockConflict(err error) bool {
	return postgres.IsLockNotAvailable(err) || postgres.IsDeadlock(err)
}
