package item

import (
	"context"
)

// Repository looks up item master records.
type Repository interface {
	// GetByCode returns apperror ITEM_NOT_FOUND when the code has no master record.
	GetByCode(ctx context.Context, code string) (*Item, error)
}
