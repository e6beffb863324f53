package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"liquorstock/internal/core/apperror"
	appctx "liquorstock/internal/core/context"
	"liquorstock/internal/infrastructure/storage/postgres"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyScope = "idempotency_scope"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore records request keys and their responses per company.
// *postgres.IdempotencyStore implements it.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, companyID int64, key, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, companyID int64, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, companyID int64, key string, statusCode int, contentType string, response any) error
	ReleaseKey(ctx context.Context, companyID int64, key string) error
}

// IdempotencyScope names a claimed key. Client keys are unique per company.
type IdempotencyScope struct {
	CompanyID int64
	Key       string
}

// Retryable reports whether a failed response should release the key instead
// of being replayed: lock conflicts and server errors may succeed on retry.
func Retryable(status int) bool {
	return status == http.StatusConflict || status >= http.StatusInternalServerError
}

// Idempotency replays the stored response of a repeated POST carrying the
// same X-Idempotency-Key. Keys are scoped to the company, so it must run
// after Company.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()
		scope := IdempotencyScope{CompanyID: appctx.GetCompanyID(c.Request.Context()), Key: key}

		replay, err := store.AcquireKey(c.Request.Context(), scope.CompanyID, key, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyScope, scope)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// IdempotencyFromContext returns the scope and store attached by Idempotency.
func IdempotencyFromContext(c *gin.Context) (IdempotencyScope, IdempotencyStore, bool) {
	v, _ := c.Get(ctxIdempotencyScope)
	scope, ok := v.(IdempotencyScope)
	if !ok || scope.Key == "" {
		return IdempotencyScope{}, nil, false
	}
	v, _ = c.Get(ctxIdempotencyStore)
	store, ok := v.(IdempotencyStore)
	return scope, store, ok && store != nil
}
