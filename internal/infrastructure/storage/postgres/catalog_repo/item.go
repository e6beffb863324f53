// Package catalog_repo reads master data the ledger depends on.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/domain/catalogs/item"
	"liquorstock/internal/infrastructure/storage/postgres"
)

const itemTable = "items"

// ItemRepo implements item.Repository over the back-office items table.
type ItemRepo struct {
	txm     *postgres.TxManager
	cols    []string
	builder squirrel.StatementBuilderType
}

var _ item.Repository = (*ItemRepo)(nil)

// NewItemRepo creates an item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txm:     txm,
		cols:    postgres.ExtractDBColumns[item.Item](),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByCode retrieves an item by its code.
func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*item.Item, error) {
	q := r.builder.Select(r.cols...).
		From(itemTable).
		Where(squirrel.Eq{"item_code": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it item.Item
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewItemNotFound(code)
		}
		return nil, fmt.Errorf("get item %s: %w", code, err)
	}
	return &it, nil
}
