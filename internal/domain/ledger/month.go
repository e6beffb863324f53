// Package ledger implements the per-item daily stock ledger: one row per
// (company, item, stock-month) holding open/purchase/sale/closing for every day.
package ledger

import (
	"fmt"
	"time"
)

// StockMonth identifies the calendar month a ledger row belongs to.
type StockMonth struct {
	Year  int
	Month time.Month
}

// MonthOf returns the stock month containing t (in t's location).
func MonthOf(t time.Time) StockMonth {
	return StockMonth{Year: t.Year(), Month: t.Month()}
}

// ParseStockMonth parses "YYYY-MM".
func ParseStockMonth(s string) (StockMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return StockMonth{}, fmt.Errorf("parse stock month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// DaysIn returns the number of calendar days in the month, leap Februaries included.
func (m StockMonth) DaysIn() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstDay returns the first day of the month at midnight UTC.
func (m StockMonth) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Date returns the given day of the month at midnight UTC.
func (m StockMonth) Date(day int) time.Time {
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}

func (m StockMonth) Prev() StockMonth { return MonthOf(m.FirstDay().AddDate(0, -1, 0)) }

func (m StockMonth) Next() StockMonth { return MonthOf(m.FirstDay().AddDate(0, 1, 0)) }

func (m StockMonth) Before(o StockMonth) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m StockMonth) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// String renders "YYYY-MM".
func (m StockMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Clock supplies "today" to the ledger. Day boundaries are evaluated in the
// clock's location, so a shop in UTC+05:30 rolls over at its own midnight.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock reading wall time in loc.
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return ClockFunc(func() time.Time { return time.Now().In(loc) })
}

// lastDayToRecompute is the cascade horizon: today for the current month,
// the full month for past months. Future months have nothing to recompute.
func lastDayToRecompute(m StockMonth, today time.Time) int {
	current := MonthOf(today)
	switch {
	case m == current:
		return today.Day()
	case m.Before(current):
		return m.DaysIn()
	default:
		return 0
	}
}
