package ledger_repo

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/internal/domain/ledger"
)

var feb2025 = ledger.StockMonth{Year: 2025, Month: time.February}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL("daily_stock_7_02_24", 29)

	assert.True(t, strings.HasPrefix(sql, `CREATE TABLE IF NOT EXISTS "daily_stock_7_02_24" (`))
	assert.Contains(t, sql, `"ID" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, sql, `"STOCK_MONTH" DATE NOT NULL`)
	assert.Contains(t, sql, `"DAY_29_CLOSING" BIGINT NOT NULL DEFAULT 0`)
	assert.NotContains(t, sql, `DAY_30_`)
	assert.Equal(t, 29*4, strings.Count(sql, `"DAY_`))
}

func TestAddDayColumnsSQL(t *testing.T) {
	sql := addDayColumnsSQL("daily_stock_7", 28, 31)

	assert.True(t, strings.HasPrefix(sql, `ALTER TABLE "daily_stock_7" ADD COLUMN IF NOT EXISTS "DAY_29_OPEN"`))
	assert.Equal(t, 12, strings.Count(sql, "ADD COLUMN IF NOT EXISTS"))
	assert.Contains(t, sql, `"DAY_31_SALES" BIGINT NOT NULL DEFAULT 0`)
	assert.NotContains(t, sql, `DAY_28_`)
}

func TestIndexSQL(t *testing.T) {
	stmts := indexSQL("daily_stock_7")
	require.Len(t, stmts, 2)
	assert.Equal(t,
		`CREATE UNIQUE INDEX IF NOT EXISTS "ux_daily_stock_7_month_item" ON "daily_stock_7" ("STOCK_MONTH", "ITEM_CODE")`,
		stmts[0])
}

func TestSelectRow(t *testing.T) {
	r := NewLedgerRepo(nil, ledger.NewNaming(""))
	sql, args, err := r.selectRow("daily_stock_7", "I1", feb2025, 2).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "ITEM_CODE", "STOCK_MONTH", "THROUGH_DAY", "LAST_UPDATED", `+
			`"DAY_01_OPEN", "DAY_01_PURCHASE", "DAY_01_SALES", "DAY_01_CLOSING", `+
			`"DAY_02_OPEN", "DAY_02_PURCHASE", "DAY_02_SALES", "DAY_02_CLOSING" `+
			`FROM "daily_stock_7" WHERE "ITEM_CODE" = $1 AND "STOCK_MONTH" = $2 FOR UPDATE`,
		sql)
	assert.Equal(t, []any{"I1", feb2025.FirstDay()}, args)
}

func TestUpdateRow(t *testing.T) {
	r := NewLedgerRepo(nil, ledger.NewNaming(""))
	row := ledger.NewRow(7, "I1", feb2025, 10)
	require.NoError(t, row.Apply(1, ledger.ColumnSale, 4))
	_, err := row.Cascade(1, 1)
	require.NoError(t, err)

	sql, args, err := r.updateRow("daily_stock_7", row).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, `UPDATE "daily_stock_7" SET "THROUGH_DAY" = $1, "LAST_UPDATED" = $2, "DAY_01_OPEN" = $3`))
	assert.True(t, strings.HasSuffix(sql, `WHERE "ITEM_CODE" = $115 AND "STOCK_MONTH" = $116`))
	require.Len(t, args, 2+28*4+2)
	assert.Equal(t, 1, args[0])
	assert.Equal(t, []any{int64(10), int64(0), int64(4), int64(6)}, args[2:6])
}

func TestCopyMonth(t *testing.T) {
	r := NewLedgerRepo(nil, ledger.NewNaming(""))
	sql, args, err := r.copyMonth("daily_stock_7", "daily_stock_7_02_25", feb2025).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, `INSERT INTO "daily_stock_7_02_25" ("ITEM_CODE", "STOCK_MONTH"`))
	assert.Contains(t, sql, `SELECT "ITEM_CODE", "STOCK_MONTH"`)
	assert.Contains(t, sql, `FROM "daily_stock_7" WHERE "STOCK_MONTH" = $1`)
	assert.True(t, strings.HasSuffix(sql, `ON CONFLICT ("STOCK_MONTH", "ITEM_CODE") DO NOTHING`))
	assert.NotContains(t, sql, "DAY_29_")
	assert.Equal(t, []any{feb2025.FirstDay()}, args)
}

func TestRowColumnsMatchValues(t *testing.T) {
	row := ledger.NewRow(7, "I1", feb2025, 0)
	assert.Len(t, rowValues(row), len(rowColumns(row.Len())))
}

func TestIsLockConflict(t *testing.T) {
	assert.True(t, isLockConflict(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, isLockConflict(fmt.Errorf("scan: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, isLockConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isLockConflict(errors.New("connection reset")))
}
