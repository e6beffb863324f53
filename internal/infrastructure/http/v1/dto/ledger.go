package dto

import (
	"strings"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/core/types"
	"liquorstock/internal/domain/ledger"
)

// --- Requests ---

// TransactionRequest is one stock event.
type TransactionRequest struct {
	ItemCode  string `json:"itemCode" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Direction string `json:"direction" binding:"required"`
	// Against is required for BREAKAGE_REVERSAL: PURCHASE or SALE.
	Against   string `json:"against,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// ToDomain converts the request for companyID.
func (r TransactionRequest) ToDomain(companyID int64) (ledger.Transaction, error) {
	date, err := ParseDate("date", r.Date)
	if err != nil {
		return ledger.Transaction{}, err
	}
	dir, err := ledger.ParseDirection(r.Direction)
	if err != nil {
		return ledger.Transaction{}, apperror.NewValidation("invalid direction").WithDetail("direction", r.Direction)
	}
	return ledger.Transaction{
		CompanyID: companyID,
		ItemCode:  strings.TrimSpace(r.ItemCode),
		Date:      date,
		Quantity:  types.Quantity(r.Quantity),
		Direction: dir,
		Against:   ledger.Column(strings.ToUpper(strings.TrimSpace(r.Against))),
		Reference: r.Reference,
	}, nil
}

// AmendRequest replaces Original with Replacement.
type AmendRequest struct {
	Original    TransactionRequest `json:"original" binding:"required"`
	Replacement TransactionRequest `json:"replacement" binding:"required"`
}

// --- Responses ---

// PostingResponse is returned by a posting or amendment.
type PostingResponse struct {
	ID            string            `json:"id"`
	CompanyID     int64             `json:"companyId"`
	ItemCode      string            `json:"itemCode"`
	Date          string            `json:"date"`
	Direction     string            `json:"direction"`
	Quantity      int64             `json:"quantity"`
	Day           ledger.DayBalance `json:"day"`
	ClosingValue  string            `json:"closingValue"`
	CascadedDays  int               `json:"cascadedDays"`
	CarriedMonths int               `json:"carriedMonths"`
}

// FromPostingResult converts the domain result.
func FromPostingResult(r *ledger.PostingResult) PostingResponse {
	return PostingResponse{
		ID:            r.ID.String(),
		CompanyID:     r.CompanyID,
		ItemCode:      r.ItemCode,
		Date:          r.Date.Format(DateLayout),
		Direction:     string(r.Direction),
		Quantity:      r.Quantity.Int64(),
		Day:           r.Day,
		ClosingValue:  r.ClosingValue.StringFixed(2),
		CascadedDays:  r.CascadedDays,
		CarriedMonths: r.CarriedMonths,
	}
}

// StockResponse answers a stock lookup.
type StockResponse struct {
	CompanyID int64  `json:"companyId"`
	ItemCode  string `json:"itemCode"`
	Date      string `json:"date"`
	Stock     int64  `json:"stock"`
}

// DayResponse is one day of a month view.
type DayResponse struct {
	Day  int    `json:"day"`
	Date string `json:"date"`
	ledger.DayBalance
}

// MonthResponse is the daily breakdown of one item's month.
type MonthResponse struct {
	CompanyID  int64              `json:"companyId"`
	ItemCode   string             `json:"itemCode"`
	Month      string             `json:"month"`
	Table      string             `json:"table"`
	Archived   bool               `json:"archived"`
	ThroughDay int                `json:"throughDay"`
	Turnover   ledger.Turnover    `json:"turnover"`
	Days       []DayResponse      `json:"days"`
	Violations []ledger.Violation `json:"violations"`
}

// FromMonthReport converts the domain view.
func FromMonthReport(rep *ledger.MonthReport) MonthResponse {
	row := rep.Row
	days := make([]DayResponse, row.Len())
	for i, d := range row.Days {
		days[i] = DayResponse{Day: i + 1, Date: row.Month.Date(i + 1).Format(DateLayout), DayBalance: d}
	}
	violations := rep.Violations
	if violations == nil {
		violations = []ledger.Violation{}
	}
	return MonthResponse{
		CompanyID:  row.CompanyID,
		ItemCode:   row.ItemCode,
		Month:      row.Month.String(),
		Table:      rep.Source.Name,
		Archived:   rep.Source.Archive,
		ThroughDay: row.ThroughDay,
		Turnover:   rep.Turnover,
		Days:       days,
		Violations: violations,
	}
}

// RecalculateResponse reports a repair run.
type RecalculateResponse struct {
	ItemCode      string             `json:"itemCode"`
	Month         string             `json:"month"`
	Days          int                `json:"days"`
	CarriedMonths int                `json:"carriedMonths"`
	Repaired      []ledger.Violation `json:"repaired"`
}

// FromRecalculateResult converts the domain result.
func FromRecalculateResult(itemCode string, month ledger.StockMonth, r *ledger.RecalculateResult) RecalculateResponse {
	repaired := r.Violations
	if repaired == nil {
		repaired = []ledger.Violation{}
	}
	return RecalculateResponse{
		ItemCode:      itemCode,
		Month:         month.String(),
		Days:          r.Days,
		CarriedMonths: r.CarriedMonths,
		Repaired:      repaired,
	}
}

// ArchiveResponse is one archived month.
type ArchiveResponse struct {
	Month        string `json:"month"`
	Table        string `json:"table"`
	TableCreated bool   `json:"tableCreated"`
	RowsCopied   int64  `json:"rowsCopied"`
}

// ArchiveListResponse wraps archive results.
type ArchiveListResponse struct {
	Items []ArchiveResponse `json:"items"`
}

// FromArchiveResults converts domain results.
func FromArchiveResults(res []ledger.ArchiveResult) ArchiveListResponse {
	items := make([]ArchiveResponse, len(res))
	for i, r := range res {
		items[i] = ArchiveResponse{
			Month:        r.Month.String(),
			Table:        r.Table,
			TableCreated: r.TableCreated,
			RowsCopied:   r.RowsCopied,
		}
	}
	return ArchiveListResponse{Items: items}
}
