// Package ledger_repo stores the wide daily stock tables in PostgreSQL.
//
// Each company has one live table, <prefix>_<companyId>, and one frozen table
// per archived month, <prefix>_<companyId>_<mm>_<yy>. Column names are upper
// case and always quoted.
package ledger_repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/storage/postgres"
)

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	naming  ledger.Naming
	builder squirrel.StatementBuilderType

	// dayCols caches how many day column sets each table carries.
	dayCols sync.Map
}

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager, naming ledger.Naming) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		naming:  naming,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// quote sanitises an identifier.
func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}

// fixedColumns are written by INSERT/UPDATE; ID is generated.
var fixedColumns = []string{
	ledger.ColItemCode,
	ledger.ColStockMonth,
	ledger.ColThroughDay,
	ledger.ColLastUpdated,
}

// rowColumns lists the columns selected or written for a row with days day sets.
func rowColumns(days int) []string {
	cols := make([]string, 0, len(fixedColumns)+days*4)
	cols = append(cols, fixedColumns...)
	return append(cols, ledger.DayColumnList(days)...)
}

// rowValues flattens row in rowColumns order.
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
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
