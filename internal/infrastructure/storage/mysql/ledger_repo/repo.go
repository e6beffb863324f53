// Package ledger_repo stores the wide daily stock tables in MySQL through gorm.
// Statements are built with squirrel because the day columns are dynamic.
package ledger_repo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/squirrel"

	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/storage/mysql"
)

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository on MySQL.
type LedgerRepo struct {
	txm     *mysql.TxManager
	naming  ledger.Naming
	builder squirrel.StatementBuilderType

	dayCols sync.Map
}

// NewLedgerRepo creates a MySQL ledger repository.
func NewLedgerRepo(txm *mysql.TxManager, naming ledger.Naming) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		naming:  naming,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}

var fixedColumns = []string{
	ledger.ColItemCode,
	ledger.ColStockMonth,
	ledger.ColThroughDay,
	ledger.ColLastUpdated,
}

func rowColumns(days int) []string {
	cols := make([]string, 0, len(fixedColumns)+days*4)
	cols = append(cols, fixedColumns...)
	return append(cols, ledger.DayColumnList(days)...)
}

func rowValues(row *ledger.DailyStockRow) []any {
	vals := make([]any, 0, len(fixedColumns)+row.Len()*4)
	vals = append(vals, row.ItemCode, row.Month.FirstDay(), row.ThroughDay, row.LastUpdated)
	for _, d := range row.Days {
		vals = append(vals, d.Open.Int64(), d.Purchase.Int64(), d.Sale.Int64(), d.Closing.Int64())
	}
	return vals
}

func (r *LedgerRepo) exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res := r.txm.DB(ctx).Exec(sql, args...)
	return res.RowsAffected, res.Error
}
