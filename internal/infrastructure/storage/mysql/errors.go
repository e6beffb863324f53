package mysql

import (
	"errors"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the ledger treats as idempotent outcomes.
const (
	errTableExists    = 1050
	errDuplicateField = 1060
	errDuplicateKey   = 1061
	errDuplicateEntry = 1062
	errNoSuchTable    = 1146
	errLockWait       = 1205
	errDeadlock       = 1213
)

func errorNumber(err error) (uint16, bool) {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

// IsAlreadyExists reports table, column or index "already exists" failures.
func IsAlreadyExists(err error) bool {
	if n, ok := errorNumber(err); ok {
		return n == errTableExists || n == errDuplicateField || n == errDuplicateKey
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// IsDuplicateKey reports a unique key violation.
func IsDuplicateKey(err error) bool {
	if n, ok := errorNumber(err); ok {
		return n == errDuplicateEntry
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}

// IsNoSuchTable reports a missing table.
func IsNoSuchTable(err error) bool {
	n, ok := errorNumber(err)
	return ok && n == errNoSuchTable
}

// IsLockWaitTimeout reports an innodb_lock_wait_timeout expiry.
func IsLockWaitTimeout(err error) bool {
	n, ok := errorNumber(err)
	return ok && n == errLockWait
}

// IsDeadlock reports an InnoDB deadlock; the transaction was rolled back.
func IsDeadlock(err error) bool {
	n, ok := errorNumber(err)
	return ok && n == errDeadlock
}
