package ledger

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"liquorstock/internal/core/apperror"
	"liquorstock/internal/core/id"
	"liquorstock/internal/core/tx"
	"liquorstock/internal/core/types"
	"liquorstock/internal/domain/catalogs/item"
	"liquorstock/pkg/logger"
)

var tracer = otel.Tracer("liquorstock/ledger")

// Config tunes the ledger service.
type Config struct {
	Naming Naming
	// LookbackMonths bounds how far back a missing row falls back for its
	// opening stock and for lookups.
	LookbackMonths int
	// CacheTTL is how long a StockAsOf answer may be served from cache.
	CacheTTL time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Naming:         NewNaming(""),
		LookbackMonths: 12,
		CacheTTL:       30 * time.Second,
	}
}

// Service posts transactions to the ledger and answers stock lookups.
// It is the only writer of live ledger rows.
type Service struct {
	repo  Repository
	items item.Repository
	txm   tx.Manager
	cache StockCache
	clock Clock
	cfg   Config
}

// Option customises a Service.
type Option func(*Service)

// WithCache installs a stock lookup cache.
func WithCache(c StockCache) Option { return func(s *Service) { s.cache = c } }

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option { return func(s *Service) { s.cfg = cfg } }

// NewService creates a ledger service.
func NewService(repo Repository, items item.Repository, txm tx.Manager, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		items: items,
		txm:   txm,
		cache: NoopStockCache{},
		clock: SystemClock(nil),
		cfg:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.LookbackMonths < 0 {
		s.cfg.LookbackMonths = 0
	}
	return s
}

// PostingResult is returned to the caller after a successful posting.
type PostingResult struct {
	ID        id.ID
	CompanyID int64
	ItemCode  string
	Date      time.Time
	Direction Direction
	Quantity  types.Quantity
	// Day is the target day's state after posting.
	Day DayBalance
	// ClosingValue is Day.Closing priced at the item's default rate.
	ClosingValue types.Money
	// CascadedDays counts days after the target day whose open/closing moved.
	CascadedDays int
	// CarriedMonths counts later months whose opening stock was re-derived.
	CarriedMonths int
}

// Post applies one transaction: it updates the day's directional column,
// recomputes the day's closing and cascades forward when the day is not the
// last materialised day. Everything runs in one database transaction.
func (s *Service) Post(ctx context.Context, t Transaction) (*PostingResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Post", trace.WithAttributes(
		attribute.Int64("company_id", t.CompanyID),
		attribute.String("item_code", t.ItemCode),
		attribute.String("direction", string(t.Direction)),
	))
	defer span.End()

	today := s.clock.Now()
	if err := s.validate(t, today); err != nil {
		return nil, err
	}
	it, err := s.items.GetByCode(ctx, t.ItemCode)
	if err != nil {
		return nil, err
	}

	// DDL stays outside the posting transaction: MySQL commits implicitly on it.
	if err := s.repo.EnsureLiveTable(ctx, t.CompanyID, t.Month()); err != nil {
		return nil, err
	}

	var res *PostingResult
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		checks := newStockChecks()
		var err error
		if res, err = s.post(ctx, t, it, today, checks); err != nil {
			return err
		}
		return s.verifyStock(ctx, checks)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx, t.CompanyID, t.ItemCode)

	logger.Info(ctx, "posted stock transaction",
		"posting_id", res.ID,
		"item_code", t.ItemCode,
		"date", t.Date.Format(time.DateOnly),
		"direction", t.Direction,
		"quantity", t.Quantity,
		"closing", res.Day.Closing,
		"cascaded_days", res.CascadedDays,
		"carried_months", res.CarriedMonths,
		"reference", t.Reference,
	)
	return res, nil
}

// Amend replaces a previously posted transaction: the original is reversed and
// the replacement posted atomically. Deleting a transaction is Post(t.Reversal()).
// The negative-stock policy is applied to the combined result of both legs, and
// the legs run in ascending month order so row locks are taken in that order.
func (s *Service) Amend(ctx context.Context, original, replacement Transaction) (*PostingResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Amend")
	defer span.End()

	today := s.clock.Now()
	reversal := original.Reversal()
	if err := s.validate(reversal, today); err != nil {
		return nil, err
	}
	if err := s.validate(replacement, today); err != nil {
		return nil, err
	}
	if original.CompanyID != replacement.CompanyID {
		return nil, apperror.NewValidation("amendment cannot move a transaction between companies")
	}
	origItem, err := s.items.GetByCode(ctx, original.ItemCode)
	if err != nil {
		return nil, err
	}
	replItem := origItem
	if replacement.ItemCode != original.ItemCode {
		if replItem, err = s.items.GetByCode(ctx, replacement.ItemCode); err != nil {
			return nil, err
		}
	}

	for _, m := range []StockMonth{original.Month(), replacement.Month()} {
		if err := s.repo.EnsureLiveTable(ctx, original.CompanyID, m); err != nil {
			return nil, err
		}
	}

	legs := []amendLeg{
		{t: reversal, item: origItem},
		{t: replacement, item: replItem, replacement: true},
	}
	if legs[1].before(legs[0]) {
		legs[0], legs[1] = legs[1], legs[0]
	}

	var res *PostingResult
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		checks := newStockChecks()
		for _, leg := range legs {
			r, err := s.post(ctx, leg.t, leg.item, today, checks)
			if err != nil {
				if !leg.replacement {
					return fmt.Errorf("reverse original: %w", err)
				}
				return err
			}
			if leg.replacement {
				res = r
			}
		}
		return s.verifyStock(ctx, checks)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx, original.CompanyID, original.ItemCode)
	if replacement.ItemCode != original.ItemCode {
		s.invalidate(ctx, replacement.CompanyID, replacement.ItemCode)
	}

	logger.Info(ctx, "amended stock transaction",
		"posting_id", res.ID,
		"original_item", original.ItemCode,
		"original_date", original.Date.Format(time.DateOnly),
		"item_code", replacement.ItemCode,
		"date", replacement.Date.Format(time.DateOnly),
		"quantity", replacement.Quantity,
	)
	return res, nil
}

type amendLeg struct {
	t           Transaction
	item        *item.Item
	replacement bool
}

// before orders legs by month, then item code.
func (l amendLeg) before(o amendLeg) bool {
	lm, om := l.t.Month(), o.t.Month()
	if lm != om {
		return lm.Before(om)
	}
	return l.t.ItemCode < o.t.ItemCode
}

func (s *Service) validate(t Transaction, today time.Time) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if dateOnly(t.Date).After(dateOnly(today)) {
		return apperror.NewValidation("transaction date is in the future").
			WithDetail("date", t.Date.Format(time.DateOnly)).
			WithDetail("today", today.Format(time.DateOnly))
	}
	return nil
}

// post runs inside a transaction. The rows it changes are recorded in checks;
// the caller applies the negative-stock policy once all its legs are posted.
func (s *Service) post(ctx context.Context, t Transaction, it *item.Item, today time.Time, checks *stockChecks) (*PostingResult, error) {
	month := t.Month()
	d := t.Day()

	if err := s.ensureOpen(ctx, t.CompanyID, month); err != nil {
		return nil, err
	}

	row, err := s.lockRow(ctx, t.CompanyID, t.ItemCode, month)
	if err != nil {
		return nil, err
	}

	// Untouched days between the last materialised day and d take the
	// previous closing so open[d] is correct before the delta lands.
	if row.ThroughDay < d-1 {
		if _, err := row.Materialize(d - 1); err != nil {
			return nil, apperror.NewCascadeFailure(t.ItemCode, month.String(), err)
		}
	}

	column, delta := t.Delta()
	if err := row.Apply(d, column, delta); err != nil {
		return nil, apperror.NewValidation(err.Error())
	}

	cascadeTo := d
	if d < row.ThroughDay || month.Before(MonthOf(today)) {
		cascadeTo = max(lastDayToRecompute(month, today), row.ThroughDay)
	}
	cascaded, err := row.Cascade(d, cascadeTo)
	if err != nil {
		return nil, apperror.NewCascadeFailure(t.ItemCode, month.String(), err)
	}

	checks.add(row, d)

	row.LastUpdated = time.Now().UTC()
	if err := s.repo.UpdateRow(ctx, row); err != nil {
		if cascaded > 0 {
			return nil, apperror.NewCascadeFailure(t.ItemCode, month.String(), err)
		}
		return nil, fmt.Errorf("update ledger row: %w", err)
	}

	carried := 0
	if month.Before(MonthOf(today)) {
		if carried, err = s.carryForward(ctx, row, today, checks); err != nil {
			return nil, err
		}
	}

	day := row.Days[d-1]
	return &PostingResult{
		ID:            id.New(),
		CompanyID:     t.CompanyID,
		ItemCode:      t.ItemCode,
		Date:          t.Date,
		Direction:     t.Direction,
		Quantity:      t.Quantity,
		Day:           day,
		ClosingValue:  types.ValueOf(day.Closing, it.DefaultRate),
		CascadedDays:  cascaded,
		CarriedMonths: carried,
	}, nil
}

// ensureOpen rejects postings into months that have been archived.
func (s *Service) ensureOpen(ctx context.Context, companyID int64, month StockMonth) error {
	archived, err := s.repo.TableExists(ctx, s.cfg.Naming.ArchiveTable(companyID, month))
	if err != nil {
		return fmt.Errorf("check archive: %w", err)
	}
	if archived {
		return apperror.NewPeriodClosed(month.String())
	}
	return nil
}

// lockRow returns the locked live row, creating it when the item has none
// for month. A new row's opening stock is the previous month's final closing.
func (s *Service) lockRow(ctx context.Context, companyID int64, itemCode string, month StockMonth) (*DailyStockRow, error) {
	row, err := s.repo.GetRowForUpdate(ctx, companyID, itemCode, month)
	if err != nil {
		return nil, fmt.Errorf("lock ledger row: %w", err)
	}
	if row != nil {
		return row, nil
	}

	seed, err := s.carriedStock(ctx, companyID, itemCode, month)
	if err != nil {
		return nil, err
	}
	fresh := NewRow(companyID, itemCode, month, seed)
	fresh.LastUpdated = time.Now().UTC()
	if _, err := s.repo.InsertRow(ctx, fresh); err != nil {
		return nil, fmt.Errorf("insert ledger row: %w", err)
	}

	row, err = s.repo.GetRowForUpdate(ctx, companyID, itemCode, month)
	if err != nil {
		return nil, fmt.Errorf("lock ledger row: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("ledger row %s/%s vanished after insert", itemCode, month)
	}
	return row, nil
}

// carriedStock is the final closing of the most recent earlier month that has
// a row, looking back at most LookbackMonths. Zero when none is found.
func (s *Service) carriedStock(ctx context.Context, companyID int64, itemCode string, month StockMonth) (types.Quantity, error) {
	m := month
	for i := 0; i < s.cfg.LookbackMonths; i++ {
		m = m.Prev()
		row, err := s.findRow(ctx, companyID, itemCode, m)
		if err != nil {
			return 0, err
		}
		if row != nil {
			return row.LastClosing(), nil
		}
	}
	return 0, nil
}

// carryForward pushes a past month's final closing into open[1] of each later
// month up to the current one, cascading each. It stops at the first month
// whose opening already matches or that is archived.
func (s *Service) carryForward(ctx context.Context, from *DailyStockRow, today time.Time, checks *stockChecks) (int, error) {
	current := MonthOf(today)
	closing := from.LastClosing()
	carried := 0

	for m := from.Month.Next(); !current.Before(m); m = m.Next() {
		archived, err := s.repo.TableExists(ctx, s.cfg.Naming.ArchiveTable(from.CompanyID, m))
		if err != nil {
			return carried, fmt.Errorf("check archive: %w", err)
		}
		if archived {
			logger.Warn(ctx, "carry forward stopped at archived month",
				"item_code", from.ItemCode, "month", m.String())
			return carried, nil
		}

		row, err := s.repo.GetRowForUpdate(ctx, from.CompanyID, from.ItemCode, m)
		if err != nil {
			return carried, fmt.Errorf("lock ledger row: %w", err)
		}
		if row == nil {
			// No activity that month: the same stock carries through it.
			continue
		}
		if row.Opening() == closing {
			return carried, nil
		}

		row.SetOpening(closing)
		horizon := max(lastDayToRecompute(m, today), row.ThroughDay)
		if _, err := row.Cascade(0, horizon); err != nil {
			return carried, apperror.NewCascadeFailure(row.ItemCode, m.String(), err)
		}
		checks.add(row, 1)
		row.LastUpdated = time.Now().UTC()
		if err := s.repo.UpdateRow(ctx, row); err != nil {
			return carried, apperror.NewCascadeFailure(row.ItemCode, m.String(), err)
		}
		carried++
		closing = row.LastClosing()
	}
	return carried, nil
}

type rowKey struct {
	companyID int64
	itemCode  string
	month     StockMonth
}

// stockChecks collects the rows a posting changed and the first day of each
// that was recomputed.
type stockChecks struct {
	from  map[rowKey]int
	order []rowKey
}

func newStockChecks() *stockChecks {
	return &stockChecks{from: make(map[rowKey]int)}
}

func (c *stockChecks) add(row *DailyStockRow, from int) {
	k := rowKey{companyID: row.CompanyID, itemCode: row.ItemCode, month: row.Month}
	prev, ok := c.from[k]
	if !ok {
		c.order = append(c.order, k)
	}
	if !ok || from < prev {
		c.from[k] = from
	}
}

// verifyStock applies the negative-stock policy to the final state of every
// changed row: a posting is rejected when any recomputed closing is below zero.
// The rows are already locked by the enclosing transaction.
func (s *Service) verifyStock(ctx context.Context, checks *stockChecks) error {
	for _, k := range checks.order {
		row, err := s.repo.GetRowForUpdate(ctx, k.companyID, k.itemCode, k.month)
		if err != nil {
			return fmt.Errorf("lock ledger row: %w", err)
		}
		if row == nil {
			continue
		}
		if d, q, neg := row.FirstNegative(checks.from[k], row.ThroughDay); neg {
			return apperror.NewInsufficientStock(row.ItemCode, row.Month.Date(d).Format(time.DateOnly), q.Int64())
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, companyID int64, itemCode string) {
	if err := s.cache.Invalidate(ctx, companyID, itemCode); err != nil {
		logger.Warn(ctx, "stock cache invalidation failed", "item_code", itemCode, "error", err)
	}
}

// RecalculateResult reports a repair run.
type RecalculateResult struct {
	Violations    []Violation
	Days          int
	CarriedMonths int
}

// Recalculate re-derives every open/closing of a live row from its opening
// stock and recorded deltas, repairing torn rows. Negative closings are
// logged, not rejected: the deltas are already booked.
func (s *Service) Recalculate(ctx context.Context, companyID int64, itemCode string, month StockMonth) (*RecalculateResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Recalculate")
	defer span.End()

	today := s.clock.Now()
	res := &RecalculateResult{}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureOpen(ctx, companyID, month); err != nil {
			return err
		}
		row, err := s.repo.GetRowForUpdate(ctx, companyID, itemCode, month)
		if err != nil {
			return fmt.Errorf("lock ledger row: %w", err)
		}
		if row == nil {
			return apperror.NewNotFound("ledger row", itemCode+"/"+month.String())
		}

		res.Violations = row.Violations()
		horizon := max(lastDayToRecompute(month, today), row.ThroughDay)
		if res.Days, err = row.Rebuild(horizon); err != nil {
			return apperror.NewCascadeFailure(itemCode, month.String(), err)
		}
		if d, q, neg := row.FirstNegative(1, row.ThroughDay); neg {
			logger.Warn(ctx, "recalculated row has negative closing",
				"item_code", itemCode, "month", month.String(), "day", d, "closing", q)
		}
		row.LastUpdated = time.Now().UTC()
		if err := s.repo.UpdateRow(ctx, row); err != nil {
			return apperror.NewCascadeFailure(itemCode, month.String(), err)
		}
		if month.Before(MonthOf(today)) {
			checks := newStockChecks()
			if res.CarriedMonths, err = s.carryForward(ctx, row, today, checks); err != nil {
				return err
			}
			return s.verifyStock(ctx, checks)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, companyID, itemCode)
	logger.Info(ctx, "recalculated ledger row",
		"item_code", itemCode,
		"month", month.String(),
		"violations", len(res.Violations),
		"days", res.Days,
	)
	return res, nil
}

// MonthReport is a read-only view of one item's month.
type MonthReport struct {
	Source     TableRef
	Row        *DailyStockRow
	Turnover   Turnover
	Violations []Violation
}

// MonthView returns the daily breakdown of a month from the live or archive table.
func (s *Service) MonthView(ctx context.Context, companyID int64, itemCode string, month StockMonth) (*MonthReport, error) {
	var rep *MonthReport
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		ref, err := s.resolveTable(ctx, companyID, month)
		if err != nil {
			return err
		}
		row, err := s.repo.GetRow(ctx, ref, itemCode, month)
		if err != nil {
			return fmt.Errorf("get ledger row: %w", err)
		}
		if row == nil {
			return apperror.NewNotFound("ledger row", itemCode+"/"+month.String())
		}
		rep = &MonthReport{
			Source:     ref,
			Row:        row,
			Turnover:   row.TurnoverThrough(row.ThroughDay),
			Violations: row.Violations(),
		}
		return nil
	})
	return rep, err
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
