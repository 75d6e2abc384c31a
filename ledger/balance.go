/*
balance.go - Leave balance recomputation

PURPOSE:
  Computes a member's used and remaining leave from ledger history and a
  baseline, then persists the result back to the balances table. The
  returned snapshot and the persisted row are consistent at the moment
  of return because the write happens before the return.

BASELINE SELECTION:
  override set    baseline = override_left, usage counted from
                  override_from (all history if unset)
  no override     baseline = annual_total, usage counted over the
                  current calendar year

USAGE AGGREGATION (per effective date, within the window):
  - a date with an annual record on a business day costs 1.0; any
    halfday records on that same date are NOT double-counted, the
    annual record alone governs the date
  - otherwise halfday records on a business day cost 0.5 each, capped
    at 1.0 per date (am+pm never exceeds one day)
  - off records and non-business-day records consume nothing: leave is
    not spent on days the member would not have worked

OUTPUT:
  annual_left = max(0, baseline - (annual_used + half_used))

SEE ALSO:
  - span.go: refuses annual batches that would overdraw this number
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/rowstore"
)

var (
	oneDay  = decimal.NewFromInt(1)
	halfDay = decimal.NewFromFloat(0.5)
)

// BalanceEngine recomputes and persists member leave balances.
type BalanceEngine struct {
	client   rowstore.Client
	retry    *Retryer
	calendar *Calendar
	clock    Clock
	log      *zap.Logger

	// DefaultAnnualTotal seeds annual_total when a balance row is
	// created lazily on first computation.
	DefaultAnnualTotal decimal.Decimal
}

func NewBalanceEngine(client rowstore.Client, retry *Retryer, calendar *Calendar, clock Clock, defaultAnnualTotal decimal.Decimal, log *zap.Logger) *BalanceEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &BalanceEngine{
		client:             client,
		retry:              retry,
		calendar:           calendar,
		clock:              clock,
		log:                log,
		DefaultAnnualTotal: defaultAnnualTotal,
	}
}

// Recompute recalculates the member's balance from ledger history,
// persists it, and returns the snapshot. The balance row is created
// lazily if the member has none yet.
func (e *BalanceEngine) Recompute(ctx context.Context, userKey, displayName string) (BalanceSnapshot, error) {
	row, idx, found, err := e.findBalanceRow(ctx, userKey)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	if !found {
		row = BalanceRow{
			UserKey:     strings.TrimSpace(userKey),
			DisplayName: strings.TrimSpace(displayName),
			AnnualTotal: e.DefaultAnnualTotal,
		}
	}
	if displayName != "" {
		row.DisplayName = strings.TrimSpace(displayName)
	}

	baseline, basis := row.Baseline()
	windowStart, windowEnd := e.usageWindow(row)

	annualUsed, halfUsed, err := e.aggregateUsage(ctx, userKey, windowStart, windowEnd)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	left := baseline.Sub(annualUsed.Add(halfUsed))
	if left.IsNegative() {
		left = decimal.Zero
	}

	row.AnnualUsed = annualUsed
	row.HalfUsed = halfUsed
	row.AnnualLeft = left
	row.LastUpdate = e.clock.Now()

	if err := e.persist(ctx, row, idx, found); err != nil {
		return BalanceSnapshot{}, err
	}

	e.log.Info("balance recomputed",
		zap.String("user", row.UserKey),
		zap.String("basis", basis),
		zap.String("used", annualUsed.Add(halfUsed).String()),
		zap.String("left", left.String()))

	return BalanceSnapshot{
		UserKey:     row.UserKey,
		DisplayName: row.DisplayName,
		AnnualTotal: row.AnnualTotal,
		AnnualUsed:  annualUsed,
		HalfUsed:    halfUsed,
		AnnualLeft:  left,
		Basis:       basis,
	}, nil
}

// SetOverride records an administrator-set baseline and recomputes
// immediately. A nil from counts usage over all history.
func (e *BalanceEngine) SetOverride(ctx context.Context, userKey, displayName string, left decimal.Decimal, from *Date) (BalanceSnapshot, error) {
	if left.IsNegative() {
		return BalanceSnapshot{}, &ValidationError{Field: "override_left", Message: "must not be negative"}
	}
	row, idx, found, err := e.findBalanceRow(ctx, userKey)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	if !found {
		row = BalanceRow{
			UserKey:     strings.TrimSpace(userKey),
			DisplayName: strings.TrimSpace(displayName),
			AnnualTotal: e.DefaultAnnualTotal,
		}
	}
	row.OverrideLeft = &left
	row.OverrideFrom = from
	row.LastUpdate = e.clock.Now()

	if err := e.persist(ctx, row, idx, found); err != nil {
		return BalanceSnapshot{}, err
	}
	return e.Recompute(ctx, userKey, displayName)
}

// usageWindow returns the inclusive date range usage is counted over.
// A zero start means unbounded history (override with no from date).
func (e *BalanceEngine) usageWindow(row BalanceRow) (Date, Date) {
	if row.OverrideLeft != nil {
		if row.OverrideFrom != nil {
			return *row.OverrideFrom, Date{}
		}
		return Date{}, Date{}
	}
	year := e.clock.Today().Year
	return NewDate(year, time.January, 1), NewDate(year, time.December, 31)
}

func inWindow(d, start, end Date) bool {
	if !start.IsZero() && d.Before(start) {
		return false
	}
	if !end.IsZero() && d.After(end) {
		return false
	}
	return true
}

func (e *BalanceEngine) aggregateUsage(ctx context.Context, userKey string, windowStart, windowEnd Date) (annualUsed, halfUsed decimal.Decimal, err error) {
	records, err := scanUserRecords(ctx, e.client, e.retry, userKey)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	// Group leave records by effective date so the per-date rules
	// (annual governs, halfday capped at 1.0) apply cleanly.
	type dayUsage struct {
		annual    bool
		halfCount int
	}
	days := map[Date]*dayUsage{}
	for _, rec := range records {
		if !inWindow(rec.EffectiveDate, windowStart, windowEnd) {
			continue
		}
		switch rec.Kind {
		case KindAnnual, KindHalfDay:
			u := days[rec.EffectiveDate]
			if u == nil {
				u = &dayUsage{}
				days[rec.EffectiveDate] = u
			}
			if rec.Kind == KindAnnual {
				u.annual = true
			} else {
				u.halfCount++
			}
		}
	}

	annualUsed, halfUsed = decimal.Zero, decimal.Zero
	for d, u := range days {
		business, bErr := e.calendar.IsBusinessDay(ctx, d)
		if bErr != nil {
			return decimal.Zero, decimal.Zero, bErr
		}
		if !business {
			continue
		}
		if u.annual {
			annualUsed = annualUsed.Add(oneDay)
			continue
		}
		half := halfDay.Mul(decimal.NewFromInt(int64(u.halfCount)))
		if half.GreaterThan(oneDay) {
			half = oneDay
		}
		halfUsed = halfUsed.Add(half)
	}
	return annualUsed, halfUsed, nil
}

func (e *BalanceEngine) findBalanceRow(ctx context.Context, userKey string) (BalanceRow, int, bool, error) {
	var rows []rowstore.Row
	err := e.retry.Do(ctx, "scan balances", func(ctx context.Context) error {
		var scanErr error
		rows, scanErr = e.client.ScanAll(ctx, rowstore.TableBalances)
		return scanErr
	})
	if err != nil {
		return BalanceRow{}, 0, false, err
	}
	want := strings.ToLower(strings.TrimSpace(userKey))
	for i, raw := range rows {
		row, ok := parseBalanceRow(raw)
		if !ok {
			continue
		}
		if strings.ToLower(strings.TrimSpace(row.UserKey)) == want {
			return row, i, true, nil
		}
	}
	return BalanceRow{}, 0, false, nil
}

// persist writes the balance row back: in place for an existing row,
// appended for a lazily-created one.
func (e *BalanceEngine) persist(ctx context.Context, row BalanceRow, idx int, exists bool) error {
	if !exists {
		return e.retry.Do(ctx, "append balance", func(ctx context.Context) error {
			return e.client.Append(ctx, rowstore.TableBalances, row.row())
		})
	}
	cells := row.row()
	updates := make([]rowstore.CellUpdate, len(cells))
	for col, value := range cells {
		updates[col] = rowstore.CellUpdate{
			Addr:  rowstore.CellAddr{Row: idx, Col: col},
			Value: value,
		}
	}
	return e.retry.Do(ctx, "update balance", func(ctx context.Context) error {
		return e.client.BatchUpdate(ctx, rowstore.TableBalances, updates)
	})
}
