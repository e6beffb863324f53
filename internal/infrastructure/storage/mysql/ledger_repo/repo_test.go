package ledger_repo

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/internal/domain/ledger"
)

var feb2024 = ledger.StockMonth{Year: 2024, Month: time.February}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL("daily_stock_7_02_24", feb2024.DaysIn())

	assert.True(t, strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS `daily_stock_7_02_24` ("))
	assert.Contains(t, sql, "`ID` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
	assert.Contains(t, sql, "UNIQUE KEY `ux_month_item` (`STOCK_MONTH`, `ITEM_CODE`)")
	assert.Contains(t, sql, "`DAY_29_CLOSING` BIGINT NOT NULL DEFAULT 0")
	assert.NotContains(t, sql, "DAY_30_")
	assert.True(t, strings.HasSuffix(sql, ") ENGINE=InnoDB"))
}

func TestAddDayColumnsSQL(t *testing.T) {
	sql := addDayColumnsSQL("daily_stock_7", 30, 31)
	assert.Equal(t,
		"ALTER TABLE `daily_stock_7` ADD COLUMN `DAY_31_OPEN` BIGINT NOT NULL DEFAULT 0, "+
			"ADD COLUMN `DAY_31_PURCHASE` BIGINT NOT NULL DEFAULT 0, "+
			"ADD COLUMN `DAY_31_SALES` BIGINT NOT NULL DEFAULT 0, "+
			"ADD COLUMN `DAY_31_CLOSING` BIGINT NOT NULL DEFAULT 0",
		sql)
}

func TestSelectRow(t *testing.T) {
	r := NewLedgerRepo(nil, ledger.NewNaming(""))
	sql, args, err := r.selectRow("daily_stock_7", "I1", feb2024, 1).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT `ITEM_CODE`, `STOCK_MONTH`, `THROUGH_DAY`, `LAST_UPDATED`, "+
			"`DAY_01_OPEN`, `DAY_01_PURCHASE`, `DAY_01_SALES`, `DAY_01_CLOSING` "+
			"FROM `daily_stock_7` WHERE `ITEM_CODE` = ? AND `STOCK_MONTH` = ? FOR UPDATE",
		sql)
	assert.Equal(t, []any{"I1", feb2024.FirstDay()}, args)
}

func TestInsertRow(t *testing.T) {
	r := NewLedgerRepo(nil, ledger.NewNaming(""))
	row := ledger.NewRow(7, "I1", feb2024, 12)
	sql, args, err := r.insertRow("daily_stock_7", row).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO `daily_stock_7` (`ITEM_CODE`, `STOCK_MONTH`"))
	assert.True(t, strings.HasSuffix(sql, "ON DUPLICATE KEY UPDATE `ID` = `ID`"))
	assert.Len(t, args, 4+29*4)
	assert.Equal(t, int64(12), args[4])
}

func TestCopyMonth(t *testing.T) {
	r := NewLedgerRepo(nil, ledger.NewNaming(""))
	sql, args, err := r.copyMonth("daily_stock_7", "daily_stock_7_02_24", feb2024).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO `daily_stock_7_02_24` (`ITEM_CODE`"))
	assert.Contains(t, sql, "SELECT l.`ITEM_CODE`, l.`STOCK_MONTH`")
	assert.Contains(t, sql, "FROM `daily_stock_7` l WHERE l.`STOCK_MONTH` = ?")
	assert.Contains(t, sql, "NOT EXISTS (SELECT 1 FROM `daily_stock_7_02_24` a")
	assert.Contains(t, sql, "l.`DAY_29_CLOSING`")
	assert.NotContains(t, sql, "DAY_30_")
	assert.Equal(t, []any{feb2024.FirstDay()}, args)
}

func TestIsLockConflict(t *testing.T) {
	assert.True(t, isLockConflict(&mysqlDriver.MySQLError{Number: 1205}))
	assert.True(t, isLockConflict(fmt.Errorf("scan: %w", &mysqlDriver.MySQLError{Number: 1213})))
	assert.False(t, isLockConflict(&mysqlDriver.MySQLError{Number: 1062}))
	assert.False(t, isLockConflict(errors.New("bad connection")))
}
