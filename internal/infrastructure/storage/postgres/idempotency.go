package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"liquorstock/internal/core/apperror"
)

// IdempotencyStatus is the state of a stored posting request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// staleAfter is how long a pending key may sit before a retry reclaims it.
const staleAfter = time.Minute

// IdempotencyRecord is one row of sys_idempotency. Client keys are unique per
// company, so two shops may reuse the same key.
type IdempotencyRecord struct {
	CompanyID   int64             `db:"company_id"`
	Key         string            `db:"idempotency_key"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	UpdatedAt   time.Time         `db:"updated_at"`
	Inserted    bool              `db:"inserted"`
}

// IdempotencyReplay is a stored HTTP response.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore remembers the outcome of ledger postings by client key.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

const idempotencyDDL = `
CREATE TABLE IF NOT EXISTS sys_idempotency (
	company_id            BIGINT NOT NULL,
	idempotency_key       TEXT NOT NULL,
	operation             TEXT NOT NULL,
	status                TEXT NOT NULL,
	request_hash          TEXT NOT NULL,
	response              BYTEA,
	response_status       INTEGER NOT NULL DEFAULT 0,
	response_content_type TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL,
	expires_at            TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (company_id, idempotency_key)
)`

// EnsureSchema creates sys_idempotency when missing.
func (s *IdempotencyStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, idempotencyDDL); err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("create sys_idempotency: %w", err)
	}
	return nil
}

// AcquireKey claims key for a posting of companyID. It returns (nil, nil) when
// the caller should run the request, the stored response when the request
// already finished, and an error when the key is in flight elsewhere or was
// used for a different request.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, companyID int64, key, operation, requestHash string) (*IdempotencyReplay, error) {
	now := time.Now().UTC()

	// xmax is zero only on a freshly inserted tuple.
	var rec IdempotencyRecord
	err := pgxscan.Get(ctx, s.txManager.GetQuerier(ctx), &rec, `
		INSERT INTO sys_idempotency (company_id, idempotency_key, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (company_id, idempotency_key) DO UPDATE SET
			expires_at = GREATEST(sys_idempotency.expires_at, EXCLUDED.expires_at)
		RETURNING company_id, idempotency_key, operation, status, request_hash, response,
			response_status, response_content_type, updated_at, (xmax = 0) AS inserted
	`, companyID, key, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if rec.Inserted {
		return nil, nil
	}

	if rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("company_id", companyID).
			WithDetail("stored_operation", rec.Operation).
			WithDetail("request_operation", operation)
	}

	switch rec.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return rec.replay(), nil
	case IdempotencyStatusPending:
		if now.Sub(rec.UpdatedAt) <= staleAfter {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		// The request that claimed it most likely died; take it over.
		tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE sys_idempotency SET updated_at = $1
			WHERE company_id = $2 AND idempotency_key = $3 AND status = $4 AND updated_at = $5
		`, now, companyID, key, IdempotencyStatusPending, rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("idempotency key %q has unknown status %q", key, rec.Status)
}

func (r *IdempotencyRecord) replay() *IdempotencyReplay {
	out := &IdempotencyReplay{StatusCode: r.StatusCode, ContentType: r.ContentType, Body: r.Response}
	if out.StatusCode == 0 {
		out.StatusCode = http.StatusOK
	}
	if out.ContentType == "" {
		out.ContentType = "application/json"
	}
	return out
}

// CompleteKey stores a successful response.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, companyID int64, key string, statusCode int, contentType string, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return s.finish(ctx, companyID, key, IdempotencyStatusSuccess, statusCode, contentType, body)
}

// FailKey stores a final error response; a retry with the same key gets it back.
func (s *IdempotencyStore) FailKey(ctx context.Context, companyID int64, key string, statusCode int, contentType string, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return s.finish(ctx, companyID, key, IdempotencyStatusFailed, statusCode, contentType, body)
}

func (s *IdempotencyStore) finish(ctx context.Context, companyID int64, key string, status IdempotencyStatus, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE company_id = $6 AND idempotency_key = $7
	`, status, body, statusCode, contentType, time.Now().UTC(), companyID, key)
	if err != nil {
		return fmt.Errorf("store idempotency response: %w", err)
	}
	return nil
}

// ReleaseKey forgets a pending key so the request can be retried with it.
// Lock conflicts and server errors are released rather than stored.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, companyID int64, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency
		WHERE company_id = $1 AND idempotency_key = $2 AND status = $3
	`, companyID, key, IdempotencyStatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sys_idempotency: %w", err)
	}
	return tag.RowsAffected(), nil
}
