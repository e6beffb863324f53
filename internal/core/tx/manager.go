// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the postgres, mysql and memory
// storage packages provide the implementations.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ReadOnly executes fn in a read-only transaction.
	// Stock lookups use it; a momentarily stale answer is acceptable.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
