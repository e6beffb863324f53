package mysql

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"liquorstock/internal/core/tx"
)

var tracer = otel.Tracer("liquorstock/mysql/tx")

var _ tx.Manager = (*TxManager)(nil)

// TxManager keeps the active gorm transaction in the context.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager over db.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

type txKey struct{}

// RunInTransaction runs fn in a read-committed transaction. Nested calls
// reuse the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// ReadOnly runs fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}, fn)
}

func (m *TxManager) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "transaction", trace.WithAttributes(
		attribute.String("tx.isolation", opts.Isolation.String()),
		attribute.Bool("tx.read_only", opts.ReadOnly),
	))
	defer span.End()

	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	err := m.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, gtx))
	}, opts)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// GetTx returns the transaction in ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) *gorm.DB {
	if gtx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return gtx
	}
	return nil
}

// DB returns the transaction in ctx or the pool, bound to ctx.
func (m *TxManager) DB(ctx context.Context) *gorm.DB {
	if gtx := m.GetTx(ctx); gtx != nil {
		return gtx.WithContext(ctx)
	}
	return m.db.WithContext(ctx)
}

// Pool returns the pool bound to ctx, outside any transaction. DDL runs here
// because MySQL commits the open transaction on every DDL statement.
func (m *TxManager) Pool(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx)
}
