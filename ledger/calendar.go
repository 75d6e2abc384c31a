/*
calendar.go - Business-day classification

PURPOSE:
  Decides which days of a leave span actually consume leave. A business
  day is a weekday that is not in the holiday set. The holiday set comes
  from the holidays table, loaded once and cached for the process
  lifetime; Refresh reloads it explicitly (the api package runs a
  background refresh ticker so a mid-run holiday edit is eventually
  picked up).

STALENESS:
  Acceptable because holiday lists are finalized well in advance. A
  balance recomputed between a holiday edit and the next refresh will
  use the stale set.

SEE ALSO:
  - span.go:    skips non-business days for annual leave
  - balance.go: excludes non-business-day records from usage
*/
package ledger

import (
	"context"
	"strings"
	"sync"

	"github.com/warp/attendance-engine/rowstore"
)

// Calendar classifies dates as business days using the weekend rule
// plus a cached holiday set. Safe for concurrent use.
type Calendar struct {
	client rowstore.Client
	retry  *Retryer

	mu       sync.RWMutex
	holidays map[Date]bool
	loaded   bool
}

func NewCalendar(client rowstore.Client, retry *Retryer) *Calendar {
	return &Calendar{client: client, retry: retry, holidays: map[Date]bool{}}
}

// IsBusinessDay reports whether d is a weekday outside the holiday set.
// The holiday set is loaded lazily on first use.
func (c *Calendar) IsBusinessDay(ctx context.Context, d Date) (bool, error) {
	if d.IsWeekend() {
		return false, nil
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.holidays[d], nil
}

// IsHoliday reports holiday-set membership alone, weekends aside.
func (c *Calendar) IsHoliday(ctx context.Context, d Date) (bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.holidays[d], nil
}

func (c *Calendar) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Refresh(ctx)
}

// Refresh reloads the holiday set from the holidays table. Rows that do
// not parse as dates are ignored.
func (c *Calendar) Refresh(ctx context.Context) error {
	var rows []rowstore.Row
	err := c.retry.Do(ctx, "scan holidays", func(ctx context.Context) error {
		var scanErr error
		rows, scanErr = c.client.ScanAll(ctx, rowstore.TableHolidays)
		return scanErr
	})
	if err != nil {
		return err
	}

	holidays := make(map[Date]bool, len(rows))
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		d, err := ParseDate(row[0])
		if err != nil {
			continue
		}
		holidays[d] = true
	}

	c.mu.Lock()
	c.holidays = holidays
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Holidays returns the cached holiday dates, unsorted.
func (c *Calendar) Holidays(ctx context.Context) ([]Date, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Date, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	return out, nil
}
