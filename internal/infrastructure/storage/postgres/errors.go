package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the ledger treats as idempotent outcomes.
const (
	codeDuplicateTable  = "42P07"
	codeDuplicateObject = "42710"
	codeDuplicateColumn = "42701"
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
	codeLockNotAvail    = "55P03"
	codeDeadlock        = "40P01"
)

// IsAlreadyExists reports whether err is a DDL "already exists" failure.
// Drivers behind proxies sometimes lose the SQLSTATE, so the message is
// checked as well.
func IsAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeDuplicateTable, codeDuplicateObject, codeDuplicateColumn:
			return true
		}
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return true
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

// IsUndefinedTable reports whether err says a relation does not exist.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}

// IsLockNotAvailable reports whether err is a lock_timeout expiry.
func IsLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeLockNotAvail
}

// IsDeadlock reports whether err is a detected deadlock. The server has
// already rolled the transaction back.
func IsDeadlock(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeDeadlock
}
