// Package catalog_repo reads the item master from MySQL.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/domain/catalogs/item"
	"liquorstock/internal/infrastructure/storage/mysql"
)

// ItemRepo implements item.Repository with gorm.
type ItemRepo struct {
	txm *mysql.TxManager
}

var _ item.Repository = (*ItemRepo)(nil)

// NewItemRepo creates an item repository.
func NewItemRepo(txm *mysql.TxManager) *ItemRepo {
	return &ItemRepo{txm: txm}
}

func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*item.Item, error) {
	var it item.Item
	err := r.txm.DB(ctx).Table("items").Where("item_code = ?", code).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewItemNotFound(code)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", code, err)
	}
	return &it, nil
}
