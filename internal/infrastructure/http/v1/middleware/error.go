package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liquorstock/internal/core/apperror"
	"liquorstock/pkg/logger"
)

// ErrorHandler renders the last error registered on the gin context as JSON.
// Internal causes are logged and never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			body := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
			failIdempotency(c, appErr.HTTPStatus, body)
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": c.GetString("request_id"),
			},
		}
		failIdempotency(c, http.StatusInternalServerError, body)
		c.JSON(http.StatusInternalServerError, body)
	}
}

// failIdempotency stores the error response against the request's key so a
// retry replays it. Retryable failures release the key instead.
func failIdempotency(c *gin.Context, status int, body any) {
	scope, store, ok := IdempotencyFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if Retryable(status) {
		if err := store.ReleaseKey(ctx, scope.CompanyID, scope.Key); err != nil {
			logger.Warn(ctx, "release idempotency key", "key", scope.Key, "error", err)
		}
		return
	}
	if err := store.FailKey(ctx, scope.CompanyID, scope.Key, status, "application/json", body); err != nil {
		logger.Warn(ctx, "mark idempotency key failed", "key", scope.Key, "error", err)
	}
}
