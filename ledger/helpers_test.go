package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/rowstore"
	"github.com/warp/attendance-engine/rowstore/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestEngine builds an engine over a fresh in-memory store with the
// ledger clock pinned to todayStr. Retry delays are millisecond-scale so
// exhaustion paths stay fast.
func newTestEngine(t *testing.T, todayStr string) (*ledger.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()

	today := ledger.MustDate(todayStr)
	clock := ledger.NewClock(time.UTC)
	clock.NowFunc = func() time.Time {
		return time.Date(today.Year, today.Month, today.Day, 9, 0, 0, 0, time.UTC)
	}

	engine := ledger.NewEngine(store, clock, ledger.Options{
		RetryAttempts:      3,
		RetryBaseDelay:     time.Millisecond,
		RetryMaxDelay:      5 * time.Millisecond,
		DefaultAnnualTotal: decimal.NewFromInt(15),
	}, nil)
	return engine, store
}

// addHoliday appends a date to the holidays table and refreshes the cache.
func addHoliday(t *testing.T, engine *ledger.Engine, store *memory.Store, date string) {
	t.Helper()
	require.NoError(t, store.Append(context.Background(), rowstore.TableHolidays, rowstore.Row{date}))
	require.NoError(t, engine.Calendar.Refresh(context.Background()))
}

// mustSubmit writes one record through the guarded path with the
// administrator policy, so tests can seed history on any date.
func mustSubmit(t *testing.T, engine *ledger.Engine, sub ledger.Submission) {
	t.Helper()
	require.NoError(t, engine.Writer.GuardedAppend(context.Background(), sub, ledger.PolicyFor(ledger.RoleAdmin)))
}

func annualOn(user, date string) ledger.Submission {
	return ledger.Submission{UserKey: user, Kind: ledger.KindAnnual, Date: ledger.MustDate(date)}
}

func halfdayOn(user, date string, half ledger.HalfPeriod) ledger.Submission {
	return ledger.Submission{UserKey: user, Kind: ledger.KindHalfDay, Date: ledger.MustDate(date), Half: half}
}
