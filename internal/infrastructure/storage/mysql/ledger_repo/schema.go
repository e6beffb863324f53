package ledger_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/storage/mysql"
	"liquorstock/pkg/logger"
)

// createTableSQL builds the DDL of a ledger table with days day sets. The
// indexes are declared inline.
func createTableSQL(table string, days int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quote(table))
	fmt.Fprintf(&b, "\t%s BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n", quote(ledger.ColID))
	fmt.Fprintf(&b, "\t%s VARCHAR(64) NOT NULL,\n", quote(ledger.ColItemCode))
	fmt.Fprintf(&b, "\t%s DATE NOT NULL,\n", quote(ledger.ColStockMonth))
	fmt.Fprintf(&b, "\t%s SMALLINT NOT NULL DEFAULT 0,\n", quote(ledger.ColThroughDay))
	fmt.Fprintf(&b, "\t%s DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)", quote(ledger.ColLastUpdated))
	for _, col := range ledger.DayColumnList(days) {
		fmt.Fprintf(&b, ",\n\t%s BIGINT NOT NULL DEFAULT 0", quote(col))
	}
	fmt.Fprintf(&b, ",\n\tUNIQUE KEY %s (%s, %s)", quote("ux_month_item"), quote(ledger.ColStockMonth), quote(ledger.ColItemCode))
	fmt.Fprintf(&b, ",\n\tKEY %s (%s)", quote("ix_item"), quote(ledger.ColItemCode))
	b.WriteString("\n) ENGINE=InnoDB")
	return b.String()
}

// addDayColumnsSQL widens a live table from fromDays to toDays day sets.
func addDayColumnsSQL(table string, fromDays, toDays int) string {
	var parts []string
	for d := fromDays + 1; d <= toDays; d++ {
		for _, col := range ledger.DayColumns(d).All() {
			parts = append(parts, fmt.Sprintf("ADD COLUMN %s BIGINT NOT NULL DEFAULT 0", quote(col)))
		}
	}
	return fmt.Sprintf("ALTER TABLE %s %s", quote(table), strings.Join(parts, ", "))
}

// execDDL runs stmt on the pool, never inside the caller's transaction.
func (r *LedgerRepo) execDDL(ctx context.Context, table, stmt string) error {
	err := r.txm.Pool(ctx).Exec(stmt).Error
	switch {
	case err == nil:
		return nil
	case mysql.IsAlreadyExists(err), mysql.IsDuplicateKey(err):
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
	if err != nil || exists {
		return false, err
	}
	if err := r.execDDL(ctx, table, createTableSQL(table, month.DaysIn())); err != nil {
		return false, err
	}
	return true, nil
}

func (r *LedgerRepo) TableExists(ctx context.Context, table string) (bool, error) {
	q := r.builder.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = DATABASE()").
		Where(squirrel.Eq{"table_name": table})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var n int64
	if err := r.txm.DB(ctx).Raw(sql, args...).Scan(&n).Error; err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

func (r *LedgerRepo) tableDays(ctx context.Context, table string) (int, error) {
	if v, ok := r.dayCols.Load(table); ok {
		return v.(int), nil
	}
	q := r.builder.Select("COUNT(*)").
		From("information_schema.columns").
		Where("table_schema = DATABASE()").
		Where(squirrel.Eq{"table_name": table}).
		Where(squirrel.Like{"column_name": `DAY\_%\_CLOSING`})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int64
	if err := r.txm.DB(ctx).Raw(sql, args...).Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("count day columns of %s: %w", table, err)
	}
	if n > 0 {
		r.dayCols.Store(table, int(n))
	}
	return int(n), nil
}
