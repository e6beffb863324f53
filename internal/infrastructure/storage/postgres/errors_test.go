package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, IsAlreadyExists(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, IsAlreadyExists(fmt.Errorf("create index: %w", &pgconn.PgError{Code: "42710"})))
	assert.True(t, IsAlreadyExists(errors.New(`relation "daily_stock_7" already exists`)))
	assert.False(t, IsAlreadyExists(&pgconn.PgError{Code: "42601"}))
	assert.False(t, IsAlreadyExists(nil))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicateKey(errors.New("ERROR: duplicate key value violates unique constraint")))
	assert.False(t, IsDuplicateKey(errors.New("connection reset")))
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, IsUndefinedTable(fmt.Errorf("select: %w", &pgconn.PgError{Code: "42P01"})))
	assert.False(t, IsUndefinedTable(&pgconn.PgError{Code: "23505"}))
}

func TestIsLockNotAvailable(t *testing.T) {
	assert.True(t, IsLockNotAvailable(fmt.Errorf("lock row: %w", &pgconn.PgError{Code: "55P03"})))
	assert.False(t, IsLockNotAvailable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsLockNotAvailable(nil))
}

func TestIsDeadlock(t *testing.T) {
	assert.True(t, IsDeadlock(fmt.Errorf("lock ledger row: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsDeadlock(&pgconn.PgError{Code: "55P03"}))
	assert.False(t, IsDeadlock(errors.New("deadlock detected")))
}
