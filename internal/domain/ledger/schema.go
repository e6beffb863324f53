package ledger

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultTablePrefix is the table prefix used by existing shop databases.
const DefaultTablePrefix = "daily_stock"

// Fixed (non day-indexed) columns of a ledger table.
const (
	ColID          = "ID"
	ColItemCode    = "ITEM_CODE"
	ColStockMonth  = "STOCK_MONTH"
	ColThroughDay  = "THROUGH_DAY"
	ColLastUpdated = "LAST_UPDATED"
)

// MaxDays is the longest month; the live table never needs more day sets.
const MaxDays = 31

// DayColumnSet names the four columns held for one day.
type DayColumnSet struct {
	Open     string
	Purchase string
	Sales    string
	Closing  string
}

// DayColumns returns the column names for day d (1-based): DAY_<dd>_OPEN and so on.
func DayColumns(d int) DayColumnSet {
	p := fmt.Sprintf("DAY_%02d_", d)
	return DayColumnSet{
		Open:     p + "OPEN",
		Purchase: p + "PURCHASE",
		Sales:    p + "SALES",
		Closing:  p + "CLOSING",
	}
}

// All returns the set in storage order.
func (s DayColumnSet) All() []string {
	return []string{s.Open, s.Purchase, s.Sales, s.Closing}
}

// DayColumnList enumerates the day columns for days 1..days in storage order.
func DayColumnList(days int) []string {
	cols := make([]string, 0, days*4)
	for d := 1; d <= days; d++ {
		cols = append(cols, DayColumns(d).All()...)
	}
	return cols
}

// Naming derives live and archive table names for a company.
type Naming struct {
	Prefix string
}

// NewNaming returns a Naming with prefix, or DefaultTablePrefix when empty.
func NewNaming(prefix string) Naming {
	if prefix == "" {
		prefix = DefaultTablePrefix
	}
	return Naming{Prefix: prefix}
}

// LiveTable is the month-agnostic table of a company: <prefix>_<companyId>.
func (n Naming) LiveTable(companyID int64) string {
	return fmt.Sprintf("%s_%d", n.Prefix, companyID)
}

// ArchiveTable is the frozen table of one month: <prefix>_<companyId>_<mm>_<yy>.
func (n Naming) ArchiveTable(companyID int64, m StockMonth) string {
	return fmt.Sprintf("%s_%d_%02d_%02d", n.Prefix, companyID, int(m.Month), m.Year%100)
}

// ParseLiveTable extracts the company id from a live table name.
// Archive table names do not match.
func (n Naming) ParseLiveTable(table string) (int64, bool) {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(n.Prefix) + `_([0-9]+)$`)
	m := re.FindStringSubmatch(table)
	if m == nil {
		return 0, false
	}
	companyID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || companyID <= 0 {
		return 0, false
	}
	return companyID, true
}

// TableRef points at the table that holds a month's rows.
type TableRef struct {
	Name      string
	CompanyID int64
	Archive   bool
}

func (n Naming) Live(companyID int64) TableRef {
	return TableRef{Name: n.LiveTable(companyID), CompanyID: companyID}
}

func (n Naming) Archived(companyID int64, m StockMonth) TableRef {
	return TableRef{Name: n.ArchiveTable(companyID, m), CompanyID: companyID, Archive: true}
}
