package ledger

import (
	"fmt"
	"strings"
	"time"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/core/types"
)

// Direction of a stock transaction.
type Direction string

const (
	DirectionPurchase Direction = "PURCHASE"
	DirectionSale     Direction = "SALE"
	// DirectionBreakageReversal takes quantity back out of the column named by
	// Transaction.Against: a deleted purchase, a broken bottle returned against
	// a sale line, a voided bill.
	DirectionBreakageReversal Direction = "BREAKAGE_REVERSAL"
)

// ParseDirection accepts the upper or lower case form.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case DirectionPurchase, DirectionSale, DirectionBreakageReversal:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Column is the directional ledger column a delta lands in.
type Column string

const (
	ColumnPurchase Column = "PURCHASE"
	ColumnSale     Column = "SALE"
)

// Transaction is one stock event. It is consumed once by the writer and never
// stored verbatim; only its effect on the day columns persists.
type Transaction struct {
	CompanyID int64
	ItemCode  string
	Date      time.Time
	Quantity  types.Quantity
	Direction Direction
	// Against names the column a BREAKAGE_REVERSAL reduces.
	Against Column
	// Reference is the caller's document number (bill, purchase invoice), logged only.
	Reference string
}

// Day returns the transaction's day of month.
func (t Transaction) Day() int { return t.Date.Day() }

// Month returns the transaction's stock month.
func (t Transaction) Month() StockMonth { return MonthOf(t.Date) }

// Validate checks the fields that do not need storage access.
func (t Transaction) Validate() error {
	if t.CompanyID <= 0 {
		return apperror.NewValidation("company id must be positive").WithDetail("company_id", t.CompanyID)
	}
	if strings.TrimSpace(t.ItemCode) == "" {
		return apperror.NewValidation("item code is required")
	}
	if t.Date.IsZero() {
		return apperror.NewValidation("transaction date is required")
	}
	if !t.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", t.Quantity)
	}
	switch t.Direction {
	case DirectionPurchase, DirectionSale:
	case DirectionBreakageReversal:
		if t.Against != ColumnPurchase && t.Against != ColumnSale {
			return apperror.NewValidation("reversal must name the column it reverses").
				WithDetail("against", t.Against)
		}
	default:
		return apperror.NewValidation("unknown direction").WithDetail("direction", t.Direction)
	}
	return nil
}

// Delta returns the column and signed delta the transaction applies.
func (t Transaction) Delta() (Column, types.Quantity) {
	switch t.Direction {
	case DirectionPurchase:
		return ColumnPurchase, t.Quantity
	case DirectionSale:
		return ColumnSale, t.Quantity
	default:
		return t.Against, t.Quantity.Neg()
	}
}

// Reversal returns the transaction that undoes t.
func (t Transaction) Reversal() Transaction {
	r := t
	r.Direction = DirectionBreakageReversal
	switch t.Direction {
	case DirectionPurchase:
		r.Against = ColumnPurchase
	case DirectionSale:
		r.Against = ColumnSale
	default:
		// Undoing a reversal re-applies the original direction.
		if t.Against == ColumnPurchase {
			r.Direction = DirectionPurchase
		} else {
			r.Direction = DirectionSale
		}
		r.Against = ""
	}
	return r
}
