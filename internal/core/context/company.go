// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// CompanyContext identifies the shop company a request operates on.
type CompanyContext struct {
	CompanyID int64
	// Operator is a free-form name supplied by the calling application (cashier, job name).
	Operator string
}

type companyContextKey struct{}

// WithCompany adds CompanyContext to context.
func WithCompany(ctx context.Context, company *CompanyContext) context.Context {
	return context.WithValue(ctx, companyContextKey{}, company)
}

// GetCompany returns CompanyContext from context.
func GetCompany(ctx context.Context) *CompanyContext {
	if v, ok := ctx.Value(companyContextKey{}).(*CompanyContext); ok {
		return v
	}
	return nil
}

// GetCompanyID returns company ID from context or 0.
func GetCompanyID(ctx context.Context) int64 {
	if c := GetCompany(ctx); c != nil {
		return c.CompanyID
	}
	return 0
}

// GetOperator returns the operator name from context or empty string.
func GetOperator(ctx context.Context) string {
	if c := GetCompany(ctx); c != nil {
		return c.Operator
	}
	return ""
}
