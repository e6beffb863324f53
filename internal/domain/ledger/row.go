package ledger

import (
	"fmt"
	"time"

	"liquorstock/internal/core/types"
)

// Closing is the closing-balance recurrence: open + purchase - sale.
// No clamping; negative results are the writer's policy decision.
func Closing(open, purchase, sale types.Quantity) types.Quantity {
	return open + purchase - sale
}

// DayBalance holds the four quantities recorded for one day.
type DayBalance struct {
	Open     types.Quantity `json:"open"`
	Purchase types.Quantity `json:"purchase"`
	Sale     types.Quantity `json:"sale"`
	Closing  types.Quantity `json:"closing"`
}

// DailyStockRow is one item's ledger for one stock month.
//
// Days[0] is day 1. ThroughDay is the last day whose open/closing are
// materialised; days after it hold only purchase/sale deltas (or nothing).
type DailyStockRow struct {
	CompanyID   int64
	ItemCode    string
	Month       StockMonth
	Days        []DayBalance
	ThroughDay  int
	LastUpdated time.Time
}

// NewRow creates an empty row for month with open[1] seeded.
func NewRow(companyID int64, itemCode string, month StockMonth, seed types.Quantity) *DailyStockRow {
	days := make([]DayBalance, month.DaysIn())
	days[0].Open = seed
	return &DailyStockRow{
		CompanyID: companyID,
		ItemCode:  itemCode,
		Month:     month,
		Days:      days,
	}
}

// Len is the number of days in the row's month.
func (r *DailyStockRow) Len() int { return len(r.Days) }

// Day returns a pointer to day d (1-based).
func (r *DailyStockRow) Day(d int) (*DayBalance, error) {
	if d < 1 || d > len(r.Days) {
		return nil, fmt.Errorf("day %d out of range 1..%d for %s", d, len(r.Days), r.Month)
	}
	return &r.Days[d-1], nil
}

// Opening returns open[1].
func (r *DailyStockRow) Opening() types.Quantity { return r.Days[0].Open }

// SetOpening re-seeds open[1]. Callers cascade afterwards.
func (r *DailyStockRow) SetOpening(q types.Quantity) { r.Days[0].Open = q }

// openFor is the open value day d must carry: the seed for day 1,
// otherwise the previous day's closing.
func (r *DailyStockRow) openFor(d int) types.Quantity {
	if d == 1 {
		return r.Days[0].Open
	}
	return r.Days[d-2].Closing
}

// recompute re-derives open and closing of day d from its predecessor.
func (r *DailyStockRow) recompute(d int) {
	day := &r.Days[d-1]
	day.Open = r.openFor(d)
	day.Closing = Closing(day.Open, day.Purchase, day.Sale)
}

// Apply adds delta to the purchase or sale column of day d and recomputes
// that day's closing from the previous day's closing.
func (r *DailyStockRow) Apply(d int, column Column, delta types.Quantity) error {
	day, err := r.Day(d)
	if err != nil {
		return err
	}
	switch column {
	case ColumnPurchase:
		day.Purchase += delta
	case ColumnSale:
		day.Sale += delta
	default:
		return fmt.Errorf("unknown ledger column %q", column)
	}
	r.recompute(d)
	return nil
}

// Cascade propagates closing[fromDay] forward: for each d in fromDay+1..toDay
// it sets open[d] = closing[d-1] and recomputes closing[d], keeping the day's
// purchase and sale. toDay is clipped to the month length. It returns the
// number of days rewritten. Re-running with the same inputs is a no-op.
func (r *DailyStockRow) Cascade(fromDay, toDay int) (int, error) {
	if fromDay < 0 || fromDay > len(r.Days) {
		return 0, fmt.Errorf("cascade start %d out of range 0..%d for %s", fromDay, len(r.Days), r.Month)
	}
	if toDay > len(r.Days) {
		toDay = len(r.Days)
	}
	n := 0
	for d := fromDay + 1; d <= toDay; d++ {
		r.recompute(d)
		n++
	}
	if toDay > r.ThroughDay {
		r.ThroughDay = toDay
	}
	return n, nil
}

// Materialize brings every day up to toDay into the recurrence, starting
// after the last materialised day. Day 1 is recomputed when nothing is
// materialised yet.
func (r *DailyStockRow) Materialize(toDay int) (int, error) {
	return r.Cascade(r.ThroughDay, toDay)
}

// Rebuild recomputes every day from 1 to toDay regardless of ThroughDay.
func (r *DailyStockRow) Rebuild(toDay int) (int, error) {
	r.ThroughDay = 0
	return r.Cascade(0, toDay)
}

// ClosingAt returns closing[d].
func (r *DailyStockRow) ClosingAt(d int) types.Quantity {
	if d < 1 || d > len(r.Days) {
		return 0
	}
	return r.Days[d-1].Closing
}

// LastClosing returns the closing of the last materialised day, or the seed
// when nothing is materialised yet.
func (r *DailyStockRow) LastClosing() types.Quantity {
	if r.ThroughDay == 0 {
		return r.Opening()
	}
	return r.Days[r.ThroughDay-1].Closing
}

// FirstNegative reports the first day in from..to whose closing is below zero.
func (r *DailyStockRow) FirstNegative(from, to int) (int, types.Quantity, bool) {
	if from < 1 {
		from = 1
	}
	if to > len(r.Days) {
		to = len(r.Days)
	}
	for d := from; d <= to; d++ {
		if c := r.Days[d-1].Closing; c < 0 {
			return d, c, true
		}
	}
	return 0, 0, false
}

// Clone returns a deep copy.
func (r *DailyStockRow) Clone() *DailyStockRow {
	c := *r
	c.Days = append([]DayBalance(nil), r.Days...)
	return &c
}

// Violation describes a day that breaks the recurrence.
type Violation struct {
	Day      int            `json:"day"`
	Rule     string         `json:"rule"`
	Expected types.Quantity `json:"expected"`
	Actual   types.Quantity `json:"actual"`
}

const (
	RuleContinuity = "open_equals_previous_closing"
	RuleClosing    = "closing_equals_open_plus_purchase_minus_sale"
)

// Violations checks both invariants over the materialised days.
func (r *DailyStockRow) Violations() []Violation {
	var out []Violation
	for d := 1; d <= r.ThroughDay && d <= len(r.Days); d++ {
		day := r.Days[d-1]
		if d > 1 {
			if prev := r.Days[d-2].Closing; day.Open != prev {
				out = append(out, Violation{Day: d, Rule: RuleContinuity, Expected: prev, Actual: day.Open})
			}
		}
		if want := Closing(day.Open, day.Purchase, day.Sale); day.Closing != want {
			out = append(out, Violation{Day: d, Rule: RuleClosing, Expected: want, Actual: day.Closing})
		}
	}
	return out
}

// Turnover summarises a row up to a day.
type Turnover struct {
	Opening  types.Quantity `json:"opening"`
	Purchase types.Quantity `json:"purchase"`
	Sale     types.Quantity `json:"sale"`
	Closing  types.Quantity `json:"closing"`
}

// TurnoverThrough totals purchases and sales for days 1..toDay.
func (r *DailyStockRow) TurnoverThrough(toDay int) Turnover {
	if toDay > len(r.Days) {
		toDay = len(r.Days)
	}
	t := Turnover{Opening: r.Opening()}
	for d := 1; d <= toDay; d++ {
		t.Purchase += r.Days[d-1].Purchase
		t.Sale += r.Days[d-1].Sale
	}
	t.Closing = Closing(t.Opening, t.Purchase, t.Sale)
	return t
}
