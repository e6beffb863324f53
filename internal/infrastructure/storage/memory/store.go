// Package memory keeps the ledger in process memory. It backs tests and the
// dev server when no database is configured. Transactions are serialised by a
// single mutex and rolled back by restoring a snapshot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"liquorstock/internal/core/tx"
	"liquorstock/internal/domain/ledger"
)

var (
	_ ledger.Repository = (*Store)(nil)
	_ tx.Manager        = (*Store)(nil)
)

type rowKey struct {
	item  string
	month ledger.StockMonth
}

type table struct {
	// days is how many DAY_<dd>_* column sets the table carries.
	days int
	rows map[rowKey]*ledger.DailyStockRow
}

func (t *table) clone() *table {
	c := &table{days: t.days, rows: make(map[rowKey]*ledger.DailyStockRow, len(t.rows))}
	for k, r := range t.rows {
		c.rows[k] = r.Clone()
	}
	return c
}

// Store is an in-memory ledger repository and transaction manager.
type Store struct {
	mu     sync.Mutex
	naming ledger.Naming
	tables map[string]*table

	// BeforeUpdate, when set, runs before every UpdateRow; a non-nil error
	// aborts the write. Tests use it to inject storage failures.
	BeforeUpdate func(row *ledger.DailyStockRow) error
}

// New creates an empty store using naming for table names.
func New(naming ledger.Naming) *Store {
	return &Store{naming: naming, tables: make(map[string]*table)}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// RunInTransaction runs fn holding the store lock. Every change fn made is
// discarded when it returns an error. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		snapshot[name] = t.clone()
	}
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.tables = snapshot
		return err
	}
	return nil
}

// ReadOnly runs fn under the store lock.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// locked runs fn under the store lock unless ctx already holds it.
func (s *Store) locked(ctx context.Context, fn func() error) error {
	if inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) EnsureLiveTable(ctx context.Context, companyID int64, month ledger.StockMonth) error {
	return s.locked(ctx, func() error {
		name := s.naming.LiveTable(companyID)
		t, ok := s.tables[name]
		if !ok {
			s.tables[name] = &table{days: month.DaysIn(), rows: make(map[rowKey]*ledger.DailyStockRow)}
			return nil
		}
		t.days = max(t.days, month.DaysIn())
		return nil
	})
}

func (s *Store) EnsureArchiveTable(ctx context.Context, companyID int64, month ledger.StockMonth) (bool, error) {
	var created bool
	err := s.locked(ctx, func() error {
		name := s.naming.ArchiveTable(companyID, month)
		if _, ok := s.tables[name]; ok {
			return nil
		}
		s.tables[name] = &table{days: month.DaysIn(), rows: make(map[rowKey]*ledger.DailyStockRow)}
		created = true
		return nil
	})
	return created, err
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := s.locked(ctx, func() error {
		_, ok = s.tables[name]
		return nil
	})
	return ok, err
}

// DayColumns reports how many day column sets a table carries.
func (s *Store) DayColumns(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return 0, false
	}
	return t.days, true
}

func (s *Store) live(companyID int64) (*table, error) {
	name := s.naming.LiveTable(companyID)
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", name)
	}
	return t, nil
}

func (s *Store) GetRowForUpdate(ctx context.Context, companyID int64, itemCode string, month ledger.StockMonth) (*ledger.DailyStockRow, error) {
	var row *ledger.DailyStockRow
	err := s.locked(ctx, func() error {
		t, ok := s.tables[s.naming.LiveTable(companyID)]
		if !ok {
			return nil
		}
		if r, ok := t.rows[rowKey{itemCode, month}]; ok {
			row = r.Clone()
		}
		return nil
	})
	return row, err
}

func (s *Store) InsertRow(ctx context.Context, row *ledger.DailyStockRow) (bool, error) {
	var inserted bool
	err := s.locked(ctx, func() error {
		t, err := s.live(row.CompanyID)
		if err != nil {
			return err
		}
		if row.Len() > t.days {
			return fmt.Errorf("row for %s needs %d day columns, table has %d", row.Month, row.Len(), t.days)
		}
		k := rowKey{row.ItemCode, row.Month}
		if _, ok := t.rows[k]; ok {
			return nil
		}
		t.rows[k] = row.Clone()
		inserted = true
		return nil
	})
	return inserted, err
}

func (s *Store) UpdateRow(ctx context.Context, row *ledger.DailyStockRow) error {
	return s.locked(ctx, func() error {
		if s.BeforeUpdate != nil {
			if err := s.BeforeUpdate(row); err != nil {
				return err
			}
		}
		t, err := s.live(row.CompanyID)
		if err != nil {
			return err
		}
		k := rowKey{row.ItemCode, row.Month}
		if _, ok := t.rows[k]; !ok {
			return fmt.Errorf("row %s/%s does not exist", row.ItemCode, row.Month)
		}
		t.rows[k] = row.Clone()
		return nil
	})
}

func (s *Store) GetRow(ctx context.Context, ref ledger.TableRef, itemCode string, month ledger.StockMonth) (*ledger.DailyStockRow, error) {
	var row *ledger.DailyStockRow
	err := s.locked(ctx, func() error {
		t, ok := s.tables[ref.Name]
		if !ok {
			return nil
		}
		if r, ok := t.rows[rowKey{itemCode, month}]; ok {
			row = r.Clone()
		}
		return nil
	})
	return row, err
}

func (s *Store) ListCompanies(ctx context.Context) ([]int64, error) {
	var out []int64
	err := s.locked(ctx, func() error {
		for name := range s.tables {
			if id, ok := s.naming.ParseLiveTable(name); ok {
				out = append(out, id)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}

func (s *Store) ListMonths(ctx context.Context, companyID int64, before ledger.StockMonth) ([]ledger.StockMonth, error) {
	var out []ledger.StockMonth
	err := s.locked(ctx, func() error {
		t, ok := s.tables[s.naming.LiveTable(companyID)]
		if !ok {
			return nil
		}
		seen := make(map[ledger.StockMonth]bool)
		for k := range t.rows {
			if k.month.Before(before) && !seen[k.month] {
				seen[k.month] = true
				out = append(out, k.month)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, err
}

func (s *Store) CopyMonthToArchive(ctx context.Context, companyID int64, month ledger.StockMonth) (int64, error) {
	var copied int64
	err := s.locked(ctx, func() error {
		live, err := s.live(companyID)
		if err != nil {
			return err
		}
		name := s.naming.ArchiveTable(companyID, month)
		archive, ok := s.tables[name]
		if !ok {
			return fmt.Errorf("table %s does not exist", name)
		}
		for k, r := range live.rows {
			if k.month != month {
				continue
			}
			if _, ok := archive.rows[k]; ok {
				continue
			}
			archive.rows[k] = r.Clone()
			copied++
		}
		return nil
	})
	return copied, err
}

// Seed stores a row as-is, creating the live table when needed. Tests use it
// to set up torn rows and history the writer would never produce.
func (s *Store) Seed(row *ledger.DailyStockRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.naming.LiveTable(row.CompanyID)
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[rowKey]*ledger.DailyStockRow)}
		s.tables[name] = t
	}
	t.days = max(t.days, row.Len())
	if row.LastUpdated.IsZero() {
		row.LastUpdated = time.Now().UTC()
	}
	t.rows[rowKey{row.ItemCode, row.Month}] = row.Clone()
}
