package memory

import (
	"context"
	"sync"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/domain/catalogs/item"
)

// Items is an in-memory item master.
type Items struct {
	mu    sync.RWMutex
	items map[string]item.Item
}

var _ item.Repository = (*Items)(nil)

// NewItems returns an item master holding items.
func NewItems(items ...item.Item) *Items {
	m := &Items{items: make(map[string]item.Item, len(items))}
	for _, it := range items {
		m.items[it.Code] = it
	}
	return m
}

// Put adds or replaces an item.
func (m *Items) Put(it item.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.Code] = it
}

func (m *Items) GetByCode(_ context.Context, code string) (*item.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[code]
	if !ok {
		return nil, apperror.NewItemNotFound(code)
	}
	return &it, nil
}
