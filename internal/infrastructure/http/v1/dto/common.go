// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"liquorstock/internal/core/apperror"
)

// DateLayout is the wire format of ledger dates.
const DateLayout = time.DateOnly

// ErrorResponse documents the body rendered by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseDate parses a YYYY-MM-DD field.
func ParseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperror.NewValidation(field + " is required")
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, apperror.NewValidation("invalid "+field).
			WithDetail(field, value).
			WithDetail("format", DateLayout)
	}
	return t, nil
}
