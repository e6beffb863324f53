package ledger_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/core/types"
	"liquorstock/internal/domain/catalogs/item"
	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/storage/memory"
)

const company = int64(7)

var march = ledger.StockMonth{Year: 2025, Month: time.March}

type fixture struct {
	store  *memory.Store
	items  *memory.Items
	svc    *ledger.Service
	naming ledger.Naming
	today  time.Time
}

func newFixture(t *testing.T, today time.Time) *fixture {
	t.Helper()
	naming := ledger.NewNaming("")
	f := &fixture{
		store:  memory.New(naming),
		naming: naming,
		today:  today,
		items: memory.NewItems(
			item.Item{Code: "I1", Name: "Old Monk 750ml", DefaultRate: types.MustMoney("12.50"), Classification: item.ClassSpirits},
			item.Item{Code: "I2", Name: "Kingfisher 650ml", DefaultRate: types.MustMoney("2.10"), Classification: item.ClassBeer},
		),
	}
	cfg := ledger.DefaultConfig()
	cfg.Naming = naming
	f.svc = ledger.NewService(f.store, f.items, f.store,
		ledger.WithConfig(cfg),
		ledger.WithClock(ledger.ClockFunc(func() time.Time { return f.today })),
	)
	return f
}

func day(m ledger.StockMonth, d int) time.Time { return m.Date(d) }

func (f *fixture) post(t *testing.T, itemCode string, date time.Time, dir ledger.Direction, q types.Quantity) *ledger.PostingResult {
	t.Helper()
	res, err := f.svc.Post(context.Background(), ledger.Transaction{
		CompanyID: company, ItemCode: itemCode, Date: date, Quantity: q, Direction: dir,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) row(t *testing.T, itemCode string, m ledger.StockMonth) *ledger.DailyStockRow {
	t.Helper()
	row, err := f.store.GetRow(context.Background(), f.naming.Live(company), itemCode, m)
	require.NoError(t, err)
	require.NotNil(t, row)
	return row
}

func (f *fixture) seed(itemCode string, m ledger.StockMonth, opening types.Quantity, through int) *ledger.DailyStockRow {
	row := ledger.NewRow(company, itemCode, m, opening)
	_, _ = row.Cascade(0, through)
	f.store.Seed(row)
	return row
}

func TestPost_WorkedExample(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 3, 18, 0, 0, 0, time.UTC))
	f.seed("I1", march, 100, 0)

	res := f.post(t, "I1", day(march, 1), ledger.DirectionSale, 10)
	assert.Equal(t, ledger.DayBalance{Open: 100, Sale: 10, Closing: 90}, res.Day)
	assert.True(t, types.MustMoney("1125").Equal(res.ClosingValue))

	res = f.post(t, "I1", day(march, 3), ledger.DirectionPurchase, 50)
	assert.Equal(t, ledger.DayBalance{Open: 90, Purchase: 50, Closing: 140}, res.Day)

	row := f.row(t, "I1", march)
	assert.Equal(t, ledger.DayBalance{Open: 90, Closing: 90}, row.Days[1])

	res = f.post(t, "I1", day(march, 1), ledger.DirectionSale, 20)
	assert.Equal(t, ledger.DayBalance{Open: 100, Sale: 30, Closing: 70}, res.Day)
	assert.Equal(t, 2, res.CascadedDays)

	row = f.row(t, "I1", march)
	assert.Equal(t, ledger.DayBalance{Open: 70, Closing: 70}, row.Days[1])
	assert.Equal(t, ledger.DayBalance{Open: 70, Purchase: 50, Closing: 120}, row.Days[2])
	assert.Equal(t, 3, row.ThroughDay)
	assert.Empty(t, row.Violations())
}

func TestPost_CreatesTableAndRow(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC))
	feb := ledger.StockMonth{Year: 2025, Month: time.February}

	res := f.post(t, "I2", day(feb, 4), ledger.DirectionPurchase, 24)
	assert.Equal(t, types.Quantity(24), res.Day.Closing)

	days, ok := f.store.DayColumns(f.naming.LiveTable(company))
	require.True(t, ok)
	assert.Equal(t, 28, days)

	row := f.row(t, "I2", feb)
	assert.Len(t, row.Days, 28)
	assert.Equal(t, 4, row.ThroughDay)

	// A longer month widens the live table.
	f.today = time.Date(2025, time.March, 2, 9, 0, 0, 0, time.UTC)
	f.post(t, "I2", day(march, 2), ledger.DirectionSale, 4)
	days, _ = f.store.DayColumns(f.naming.LiveTable(company))
	assert.Equal(t, 31, days)

	// March opens with February's stock.
	row = f.row(t, "I2", march)
	assert.Equal(t, types.Quantity(24), row.Opening())
	assert.Equal(t, types.Quantity(20), row.Days[1].Closing)
}

func TestPost_Reversal(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))
	f.seed("I1", march, 30, 0)

	f.post(t, "I1", day(march, 2), ledger.DirectionSale, 6)
	res, err := f.svc.Post(context.Background(), ledger.Transaction{
		CompanyID: company, ItemCode: "I1", Date: day(march, 2), Quantity: 2,
		Direction: ledger.DirectionBreakageReversal, Against: ledger.ColumnSale,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.DayBalance{Open: 30, Sale: 4, Closing: 26}, res.Day)
}

func TestPost_RejectsNegativeStock(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))
	f.seed("I1", march, 10, 0)
	f.post(t, "I1", day(march, 3), ledger.DirectionSale, 10)

	_, err := f.svc.Post(context.Background(), ledger.Transaction{
		CompanyID: company, ItemCode: "I1", Date: day(march, 2), Quantity: 5, Direction: ledger.DirectionSale,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	row := f.row(t, "I1", march)
	assert.Equal(t, types.Quantity(0), row.Days[1].Sale)
	assert.Equal(t, types.Quantity(0), row.Days[2].Closing)
}

func TestPost_Validation(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))

	_, err := f.svc.Post(context.Background(), ledger.Transaction{
		CompanyID: company, ItemCode: "I1", Date: day(march, 6), Quantity: 1, Direction: ledger.DirectionPurchase,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "future date")

	_, err = f.svc.Post(context.Background(), ledger.Transaction{
		CompanyID: company, ItemCode: "NOPE", Date: day(march, 1), Quantity: 1, Direction: ledger.DirectionPurchase,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeItemNotFound))

	exists, err := f.store.TableExists(context.Background(), f.naming.LiveTable(company))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPost_CascadeFailureRollsBack(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))
	f.seed("I1", march, 50, 0)
	f.post(t, "I1", day(march, 4), ledger.DirectionSale, 5)
	before := f.row(t, "I1", march)

	f.store.BeforeUpdate = func(*ledger.DailyStockRow) error { return errors.New("disk full") }
	_, err := f.svc.Post(context.Background(), ledger.Transaction{
		CompanyID: company, ItemCode: "I1", Date: day(march, 1), Quantity: 3, Direction: ledger.DirectionSale,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCascadeFailure))

	f.store.BeforeUpdate = nil
	after := f.row(t, "I1", march)
	assert.Equal(t, before.Days, after.Days)
}

func TestPost_PastMonthCascadesAndCarries(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC))
	april := ledger.StockMonth{Year: 2025, Month: time.April}
	f.seed("I1", march, 100, 31)
	f.seed("I1", april, 100, 5)

	res := f.post(t, "I1", day(march, 15), ledger.DirectionPurchase, 10)
	assert.Equal(t, 16, res.CascadedDays)
	assert.Equal(t, 1, res.CarriedMonths)

	m := f.row(t, "I1", march)
	assert.Equal(t, types.Quantity(110), m.LastClosing())
	assert.Equal(t, types.Quantity(100), m.Days[13].Closing)

	a := f.row(t, "I1", april)
	assert.Equal(t, types.Quantity(110), a.Opening())
	assert.Equal(t, types.Quantity(110), a.Days[4].Closing)
	assert.Empty(t, a.Violations())
}

func TestPost_PeriodClosed(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC))
	f.seed("I1", march, 100, 31)
	archiver := ledger.NewArchiver(f.store, f.store, memory.NewLocker(),
		ledger.WithArchiverClock(ledger.ClockFunc(func() time.Time { return f.today })))
	_, err := archiver.ArchiveMonth(context.Background(), company, march)
	require.NoError(t, err)

	_, err = f.svc.Post(context.Background(), ledger.Transaction{
		CompanyID: company, ItemCode: "I1", Date: day(march, 20), Quantity: 1, Direction: ledger.DirectionSale,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodClosed))
}

func TestAmend(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))
	f.seed("I1", march, 20, 0)
	original := ledger.Transaction{CompanyID: company, ItemCode: "I1", Date: day(march, 1), Quantity: 10, Direction: ledger.DirectionSale}
	_, err := f.svc.Post(context.Background(), original)
	require.NoError(t, err)

	replacement := original
	replacement.Date = day(march, 2)
	replacement.Quantity = 4
	res, err := f.svc.Amend(context.Background(), original, replacement)
	require.NoError(t, err)
	assert.Equal(t, ledger.DayBalance{Open: 20, Sale: 4, Closing: 16}, res.Day)

	row := f.row(t, "I1", march)
	assert.Equal(t, ledger.DayBalance{Open: 20, Closing: 20}, row.Days[0])
}

func TestRecalculate_RepairsTornRow(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))
	torn := ledger.NewRow(company, "I1", march, 50)
	torn.Days[0] = ledger.DayBalance{Open: 50, Sale: 5, Closing: 45}
	torn.Days[1] = ledger.DayBalance{Open: 50, Purchase: 10, Closing: 60}
	torn.ThroughDay = 2
	f.store.Seed(torn)

	res, err := f.svc.Recalculate(context.Background(), company, "I1", march)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Violations)
	assert.Equal(t, 5, res.Days)

	row := f.row(t, "I1", march)
	assert.Empty(t, row.Violations())
	assert.Equal(t, types.Quantity(55), row.Days[4].Closing)

	_, err = f.svc.Recalculate(context.Background(), company, "I9", march)
	assert.True(t, apperror.IsNotFound(err))
}

func TestMonthView(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))
	f.seed("I1", march, 10, 0)
	f.post(t, "I1", day(march, 1), ledger.DirectionPurchase, 6)
	f.post(t, "I1", day(march, 2), ledger.DirectionSale, 4)

	rep, err := f.svc.MonthView(context.Background(), company, "I1", march)
	require.NoError(t, err)
	assert.False(t, rep.Source.Archive)
	assert.Equal(t, ledger.Turnover{Opening: 10, Purchase: 6, Sale: 4, Closing: 12}, rep.Turnover)
	assert.Empty(t, rep.Violations)

	_, err = f.svc.MonthView(context.Background(), company, "I2", march)
	assert.True(t, apperror.IsNotFound(err))
}

func TestAmend_PurchaseAfterLaterSales(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC))
	f.seed("I1", march, 0, 0)
	original := ledger.Transaction{CompanyID: company, ItemCode: "I1", Date: day(march, 3), Quantity: 50, Direction: ledger.DirectionPurchase}
	_, err := f.svc.Post(context.Background(), original)
	require.NoError(t, err)
	f.post(t, "I1", day(march, 4), ledger.DirectionSale, 40)

	replacement := original
	replacement.Quantity = 55
	res, err := f.svc.Amend(context.Background(), original, replacement)
	require.NoError(t, err)
	assert.Equal(t, ledger.DayBalance{Purchase: 55, Closing: 55}, res.Day)

	row := f.row(t, "I1", march)
	assert.Equal(t, ledger.DayBalance{Open: 55, Sale: 40, Closing: 15}, row.Days[3])
	assert.Empty(t, row.Violations())

	// Cutting the purchase below what was sold is still refused as a whole.
	tooSmall := original
	tooSmall.Quantity = 30
	_, err = f.svc.Amend(context.Background(), replacement, tooSmall)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	row = f.row(t, "I1", march)
	assert.Equal(t, types.Quantity(55), row.Days[2].Purchase)
	assert.Equal(t, types.Quantity(15), row.Days[4].Closing)
}

// lockRecorder records the months of rows locked for update.
type lockRecorder struct {
	*memory.Store
	locked []ledger.StockMonth
}

func (r *lockRecorder) GetRowForUpdate(ctx context.Context, companyID int64, itemCode string, month ledger.StockMonth) (*ledger.DailyStockRow, error) {
	r.locked = append(r.locked, month)
	return r.Store.GetRowForUpdate(ctx, companyID, itemCode, month)
}

func TestAmend_LocksMonthsInAscendingOrder(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC))
	april := ledger.StockMonth{Year: 2025, Month: time.April}
	f.seed("I1", march, 100, 31)
	f.seed("I1", april, 100, 10)

	rec := &lockRecorder{Store: f.store}
	cfg := ledger.DefaultConfig()
	cfg.Naming = f.naming
	svc := ledger.NewService(rec, f.items, f.store,
		ledger.WithConfig(cfg),
		ledger.WithClock(ledger.ClockFunc(func() time.Time { return f.today })),
	)

	original := ledger.Transaction{CompanyID: company, ItemCode: "I1", Date: day(april, 2), Quantity: 10, Direction: ledger.DirectionSale}
	_, err := svc.Post(context.Background(), original)
	require.NoError(t, err)

	rec.locked = nil
	replacement := original
	replacement.Date = day(march, 20)
	res, err := svc.Amend(context.Background(), original, replacement)
	require.NoError(t, err)
	assert.Equal(t, ledger.DayBalance{Open: 100, Sale: 10, Closing: 90}, res.Day)

	var firstSeen []ledger.StockMonth
	for _, m := range rec.locked {
		if !slices.Contains(firstSeen, m) {
			firstSeen = append(firstSeen, m)
		}
	}
	assert.Equal(t, []ledger.StockMonth{march, april}, firstSeen)

	a := f.row(t, "I1", april)
	assert.Equal(t, types.Quantity(90), a.Opening())
	assert.Equal(t, ledger.DayBalance{Open: 90, Closing: 90}, a.Days[1])
	assert.Equal(t, types.Quantity(90), a.Days[9].Closing)
	assert.Empty(t, a.Violations())
}

func TestPost_RetroactiveSaleCascadesToToday(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC))
	f.seed("I1", march, 200, 0)
	for d := 1; d <= 10; d++ {
		f.post(t, "I1", day(march, d), ledger.DirectionSale, 3)
	}

	res := f.post(t, "I1", day(march, 5), ledger.DirectionSale, 12)
	assert.Equal(t, ledger.DayBalance{Open: 188, Sale: 15, Closing: 173}, res.Day)
	assert.Equal(t, 5, res.CascadedDays)

	row := f.row(t, "I1", march)
	assert.Equal(t, 10, row.ThroughDay)
	assert.Empty(t, row.Violations())
	for d := 6; d <= 10; d++ {
		assert.Equal(t, row.Days[d-2].Closing, row.Days[d-1].Open, "day %d", d)
	}
	assert.Equal(t, types.Quantity(200-30-12), row.Days[9].Closing)
}
