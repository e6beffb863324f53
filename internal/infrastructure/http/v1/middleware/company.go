package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"liquorstock/internal/core/apperror"
	appctx "liquorstock/internal/core/context"
)

const (
	// ParamCompanyID is the route parameter naming the company.
	ParamCompanyID = "companyId"
	// HeaderOperator names the cashier or job acting on the ledger.
	HeaderOperator = "X-Operator"
)

// Company parses the :companyId route parameter into the request context.
func Company() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(ParamCompanyID)
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || companyID <= 0 {
			_ = c.Error(
				apperror.NewValidation("invalid company id").
					WithDetail("param", ParamCompanyID).
					WithDetail("value", raw),
			)
			c.Abort()
			return
		}

		ctx := appctx.WithCompany(c.Request.Context(), &appctx.CompanyContext{
			CompanyID: companyID,
			Operator:  c.GetHeader(HeaderOperator),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("company_id", companyID)

		c.Next()
	}
}
