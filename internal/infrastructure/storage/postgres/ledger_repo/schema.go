package ledger_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/storage/postgres"
	"liquorstock/pkg/logger"
)

// createTableSQL builds the DDL of a ledger table carrying days day sets.
func createTableSQL(table string, days int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quote(table))
	fmt.Fprintf(&b, "\t%s BIGSERIAL PRIMARY KEY,\n", quote(ledger.ColID))
	fmt.Fprintf(&b, "\t%s VARCHAR(64) NOT NULL,\n", quote(ledger.ColItemCode))
	fmt.Fprintf(&b, "\t%s DATE NOT NULL,\n", quote(ledger.ColStockMonth))
	fmt.Fprintf(&b, "\t%s SMALLINT NOT NULL DEFAULT 0,\n", quote(ledger.ColThroughDay))
	fmt.Fprintf(&b, "\t%s TIMESTAMPTZ NOT NULL DEFAULT now()", quote(ledger.ColLastUpdated))
	for _, col := range ledger.DayColumnList(days) {
		fmt.Fprintf(&b, ",\n\t%s BIGINT NOT NULL DEFAULT 0", quote(col))
	}
	b.WriteString("\n)")
	return b.String()
}

// addDayColumnsSQL widens a live table from fromDays to toDays day sets.
func addDayColumnsSQL(table string, fromDays, toDays int) string {
	var parts []string
	for d := fromDays + 1; d <= toDays; d++ {
		for _, col := range ledger.DayColumns(d).All() {
			parts = append(parts, fmt.Sprintf("ADD COLUMN IF NOT EXISTS %s BIGINT NOT NULL DEFAULT 0", quote(col)))
		}
	}
	return fmt.Sprintf("ALTER TABLE %s %s", quote(table), strings.Join(parts, ", "))
}

// indexSQL returns the unique (STOCK_MONTH, ITEM_CODE) index and the item index.
func indexSQL(table string) []string {
	return []string{
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s, %s)",
			quote("ux_"+table+"_month_item"), quote(table), quote(ledger.ColStockMonth), quote(ledger.ColItemCode)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote("ix_"+table+"_item"), quote(table), quote(ledger.ColItemCode)),
	}
}

// ddlTxOptions runs each statement under a savepoint so an "already exists"
// race does not abort the caller's transaction.
func ddlTxOptions() postgres.TxOptions {
	opts := postgres.DefaultTxOptions()
	opts.UseSavepoint = true
	return opts
}

// execDDL runs stmt. Already-exists and duplicate outcomes from concurrent
// creators are success; anything else is a SchemaError.
func (r *LedgerRepo) execDDL(ctx context.Context, table, stmt string) error {
	err := r.txm.RunInTransactionWithOptions(ctx, ddlTxOptions(), func(ctx context.Context) error {
		_, err := r.txm.GetQuerier(ctx).Exec(ctx, stmt)
		return err
	})
	switch {
	case err == nil:
		return nil
	case postgres.IsAlreadyExists(err), postgres.IsDuplicateKey(err):
		logger.Debug(ctx, "ledger ddl already applied", "table", table)
		return nil
	default:
		return apperror.NewSchema(table, err)
	}
}

func (r *LedgerRepo) EnsureLiveTable(ctx context.Context, companyID int64, month ledger.StockMonth) error {
	table := r.naming.LiveTable(companyID)
	want := month.DaysIn()

	have, err := r.tableDays(ctx, table)
	if err != nil {
		return err
	}
	switch {
	case have == 0:
		if err := r.execDDL(ctx, table, createTableSQL(table, want)); err != nil {
			return err
		}
		for _, stmt := range indexSQL(table) {
			if err := r.execDDL(ctx, table, stmt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "created live ledger table", "table", table, "days", want)
		r.dayCols.Delete(table)
	case have < want:
		if err := r.execDDL(ctx, table, addDayColumnsSQL(table, have, want)); err != nil {
			return err
		}
		logger.Info(ctx, "widened live ledger table", "table", table, "from_days", have, "to_days", want)
		r.dayCols.Delete(table)
	}
	return nil
}

func (r *LedgerRepo) EnsureArchiveTable(ctx context.Context, companyID int64, month ledger.StockMonth) (bool, error) {
	table := r.naming.ArchiveTable(companyID, month)
	exists, err := r.TableExists(ctx, table)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.execDDL(ctx, table, createTableSQL(table, month.DaysIn())); err != nil {
		return false, err
	}
	for _, stmt := range indexSQL(table) {
		if err := r.execDDL(ctx, table, stmt); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *LedgerRepo) TableExists(ctx context.Context, table string) (bool, error) {
	q := r.builder.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_name": table})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// tableDays returns how many day column sets table carries, 0 when it does
// not exist. Positive answers are cached.
func (r *LedgerRepo) tableDays(ctx context.Context, table string) (int, error) {
	if v, ok := r.dayCols.Load(table); ok {
		return v.(int), nil
	}
	q := r.builder.Select("COUNT(*)").
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_name": table}).
		Where(squirrel.Like{"column_name": `DAY\_%\_CLOSING`})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count day columns of %s: %w", table, err)
	}
	if n > 0 {
		r.dayCols.Store(table, n)
	}
	return n, nil
}
