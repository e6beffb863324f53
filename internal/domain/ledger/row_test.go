package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/internal/core/types"
)

var march2025 = StockMonth{Year: 2025, Month: time.March}

func TestClosing(t *testing.T) {
	tests := []struct {
		name                 string
		open, purchase, sale types.Quantity
		want                 types.Quantity
	}{
		{"no movement", 100, 0, 0, 100},
		{"purchase", 90, 50, 0, 140},
		{"sale", 100, 0, 30, 70},
		{"both", 10, 5, 7, 8},
		{"negative is not clamped", 5, 0, 8, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Closing(tt.open, tt.purchase, tt.sale))
		})
	}
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, StockMonth{Year: 2024, Month: time.February}.DaysIn())
	assert.Equal(t, 28, StockMonth{Year: 2025, Month: time.February}.DaysIn())
	assert.Equal(t, 31, march2025.DaysIn())
	assert.Equal(t, 30, StockMonth{Year: 2025, Month: time.April}.DaysIn())
	assert.Len(t, NewRow(1, "I1", StockMonth{Year: 2025, Month: time.February}, 0).Days, 28)
}

func TestStockMonth_Navigation(t *testing.T) {
	jan := StockMonth{Year: 2025, Month: time.January}
	assert.Equal(t, StockMonth{Year: 2024, Month: time.December}, jan.Prev())
	assert.Equal(t, StockMonth{Year: 2025, Month: time.February}, jan.Next())
	assert.True(t, jan.Prev().Before(jan))
	assert.False(t, jan.Before(jan))
	assert.Equal(t, "2025-01", jan.String())

	m, err := ParseStockMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, StockMonth{Year: 2024, Month: time.February}, m)

	_, err = ParseStockMonth("2024/02")
	assert.Error(t, err)
}

func TestLastDayToRecompute(t *testing.T) {
	today := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, lastDayToRecompute(march2025, today))
	assert.Equal(t, 28, lastDayToRecompute(StockMonth{Year: 2025, Month: time.February}, today))
	assert.Equal(t, 0, lastDayToRecompute(StockMonth{Year: 2025, Month: time.April}, today))
}

// The worked example: I1, company 7, March 2025, opening 100.
func TestRow_WorkedExample(t *testing.T) {
	row := NewRow(7, "I1", march2025, 100)

	require.NoError(t, row.Apply(1, ColumnSale, 10))
	_, err := row.Cascade(1, 1)
	require.NoError(t, err)
	assert.Equal(t, DayBalance{Open: 100, Sale: 10, Closing: 90}, row.Days[0])

	_, err = row.Materialize(2)
	require.NoError(t, err)
	require.NoError(t, row.Apply(3, ColumnPurchase, 50))
	_, err = row.Cascade(3, 3)
	require.NoError(t, err)
	assert.Equal(t, DayBalance{Open: 90, Closing: 90}, row.Days[1])
	assert.Equal(t, DayBalance{Open: 90, Purchase: 50, Closing: 140}, row.Days[2])
	assert.Equal(t, 3, row.ThroughDay)

	require.NoError(t, row.Apply(1, ColumnSale, 20))
	n, err := row.Cascade(1, row.ThroughDay)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, DayBalance{Open: 100, Sale: 30, Closing: 70}, row.Days[0])
	assert.Equal(t, DayBalance{Open: 70, Closing: 70}, row.Days[1])
	assert.Equal(t, DayBalance{Open: 70, Purchase: 50, Closing: 120}, row.Days[2])
	assert.Empty(t, row.Violations())
}

func TestRow_CascadeIsIdempotent(t *testing.T) {
	row := NewRow(1, "I1", march2025, 40)
	require.NoError(t, row.Apply(2, ColumnPurchase, 12))
	require.NoError(t, row.Apply(5, ColumnSale, 7))
	_, err := row.Cascade(0, 10)
	require.NoError(t, err)

	once := row.Clone()
	_, err = row.Cascade(0, 10)
	require.NoError(t, err)
	assert.Equal(t, once.Days, row.Days)
	assert.Equal(t, once.ThroughDay, row.ThroughDay)
}

func TestRow_CascadeClipsToMonth(t *testing.T) {
	feb := StockMonth{Year: 2025, Month: time.February}
	row := NewRow(1, "I1", feb, 5)
	n, err := row.Cascade(0, 31)
	require.NoError(t, err)
	assert.Equal(t, 28, n)
	assert.Equal(t, 28, row.ThroughDay)

	_, err = row.Cascade(29, 31)
	assert.Error(t, err)
}

func TestRow_ApplyOutOfRange(t *testing.T) {
	row := NewRow(1, "I1", StockMonth{Year: 2025, Month: time.April}, 0)
	assert.Error(t, row.Apply(31, ColumnSale, 1))
	assert.Error(t, row.Apply(0, ColumnSale, 1))
	assert.Error(t, row.Apply(1, Column("BROKEN"), 1))
}

func TestRow_Violations(t *testing.T) {
	row := NewRow(1, "I1", march2025, 10)
	_, err := row.Cascade(0, 3)
	require.NoError(t, err)
	row.Days[1].Open = 7
	row.Days[2].Closing = 99

	got := row.Violations()
	require.Len(t, got, 3)
	assert.Equal(t, Violation{Day: 2, Rule: RuleContinuity, Expected: 10, Actual: 7}, got[0])
	assert.Equal(t, Violation{Day: 2, Rule: RuleClosing, Expected: 7, Actual: 10}, got[1])
	assert.Equal(t, Violation{Day: 3, Rule: RuleClosing, Expected: 10, Actual: 99}, got[2])

	_, err = row.Rebuild(3)
	require.NoError(t, err)
	assert.Empty(t, row.Violations())
}

func TestRow_FirstNegativeAndTurnover(t *testing.T) {
	row := NewRow(1, "I1", march2025, 5)
	require.NoError(t, row.Apply(1, ColumnPurchase, 3))
	require.NoError(t, row.Apply(2, ColumnSale, 10))
	_, err := row.Cascade(0, 4)
	require.NoError(t, err)

	d, q, neg := row.FirstNegative(1, row.ThroughDay)
	assert.True(t, neg)
	assert.Equal(t, 2, d)
	assert.Equal(t, types.Quantity(-2), q)

	assert.Equal(t, Turnover{Opening: 5, Purchase: 3, Sale: 10, Closing: -2}, row.TurnoverThrough(4))
	assert.Equal(t, types.Quantity(-2), row.LastClosing())
}

func TestRow_LastClosingUsesSeedWhenEmpty(t *testing.T) {
	row := NewRow(1, "I1", march2025, 42)
	assert.Equal(t, types.Quantity(42), row.LastClosing())
}

func TestTransaction_DeltaAndReversal(t *testing.T) {
	date := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	sale := Transaction{CompanyID: 7, ItemCode: "I1", Date: date, Quantity: 6, Direction: DirectionSale}
	require.NoError(t, sale.Validate())

	col, q := sale.Delta()
	assert.Equal(t, ColumnSale, col)
	assert.Equal(t, types.Quantity(6), q)

	rev := sale.Reversal()
	require.NoError(t, rev.Validate())
	col, q = rev.Delta()
	assert.Equal(t, ColumnSale, col)
	assert.Equal(t, types.Quantity(-6), q)

	assert.Equal(t, DirectionSale, rev.Reversal().Direction)
}

func TestTransaction_Validate(t *testing.T) {
	date := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	base := Transaction{CompanyID: 7, ItemCode: "I1", Date: date, Quantity: 1, Direction: DirectionPurchase}

	tests := []struct {
		name   string
		mutate func(*Transaction)
	}{
		{"zero company", func(t *Transaction) { t.CompanyID = 0 }},
		{"blank item", func(t *Transaction) { t.ItemCode = " " }},
		{"no date", func(t *Transaction) { t.Date = time.Time{} }},
		{"zero quantity", func(t *Transaction) { t.Quantity = 0 }},
		{"negative quantity", func(t *Transaction) { t.Quantity = -3 }},
		{"unknown direction", func(t *Transaction) { t.Direction = "TRANSFER" }},
		{"reversal without column", func(t *Transaction) { t.Direction = DirectionBreakageReversal }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			tt.mutate(&tx)
			assert.Error(t, tx.Validate())
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("breakage_reversal")
	require.NoError(t, err)
	assert.Equal(t, DirectionBreakageReversal, d)

	_, err = ParseDirection("gift")
	assert.Error(t, err)
}

func TestNaming(t *testing.T) {
	n := NewNaming("")
	assert.Equal(t, "daily_stock_7", n.LiveTable(7))
	assert.Equal(t, "daily_stock_7_02_24", n.ArchiveTable(7, StockMonth{Year: 2024, Month: time.February}))
	assert.Equal(t, "daily_stock_12_11_25", n.ArchiveTable(12, StockMonth{Year: 2025, Month: time.November}))

	id, ok := n.ParseLiveTable("daily_stock_7")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	_, ok = n.ParseLiveTable("daily_stock_7_02_24")
	assert.False(t, ok)
	_, ok = n.ParseLiveTable("items")
	assert.False(t, ok)
}

func TestDayColumns(t *testing.T) {
	c := DayColumns(3)
	assert.Equal(t, "DAY_03_OPEN", c.Open)
	assert.Equal(t, "DAY_03_PURCHASE", c.Purchase)
	assert.Equal(t, "DAY_03_SALES", c.Sales)
	assert.Equal(t, "DAY_03_CLOSING", c.Closing)

	cols := DayColumnList(29)
	assert.Len(t, cols, 116)
	assert.Equal(t, "DAY_29_CLOSING", cols[len(cols)-1])
}

func TestScanBack(t *testing.T) {
	row := NewRow(1, "I1", march2025, 0)
	row.Days[0].Closing = 5
	row.Days[3].Closing = 8

	assert.Equal(t, types.Quantity(5), scanBack(row, 3))
	assert.Equal(t, types.Quantity(8), scanBack(row, 4))
	assert.Equal(t, types.Quantity(8), scanBack(row, 31))
	assert.Equal(t, types.Quantity(8), scanBack(row, 40))

	empty := NewRow(1, "I2", march2025, 0)
	assert.Equal(t, types.Quantity(0), scanBack(empty, 15))
}
