package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/rowstore"
)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

// =============================================================================
// BASELINE: ANNUAL TOTAL
// =============================================================================

func TestBalance_OneAnnualDay_ReducesLeftByOne(t *testing.T) {
	// GIVEN: annual_total=15, no override, one annual record on Monday
	//        2025-03-10 (non-holiday)
	// WHEN: The balance is recomputed
	// THEN: annual_used=1.0, annual_left=14.0

	engine, _ := newTestEngine(t, "2025-03-01")
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-10"))

	snapshot, err := engine.Balances.Recompute(context.Background(), "kim@corp.io", "Kim")
	require.NoError(t, err)
	assertDecimal(t, "1", snapshot.AnnualUsed)
	assertDecimal(t, "0", snapshot.HalfUsed)
	assertDecimal(t, "14", snapshot.AnnualLeft)
	assert.Equal(t, "annual total", snapshot.Basis)
}

func TestBalance_AmPlusPmHalfdays_CostExactlyOneDay(t *testing.T) {
	// Two halfday records (am+pm) on one business day consume 1.0, never 2x0.5+.

	engine, _ := newTestEngine(t, "2025-03-01")
	mustSubmit(t, engine, halfdayOn("kim@corp.io", "2025-03-10", ledger.HalfAM))
	mustSubmit(t, engine, halfdayOn("kim@corp.io", "2025-03-10", ledger.HalfPM))

	snapshot, err := engine.Balances.Recompute(context.Background(), "kim@corp.io", "Kim")
	require.NoError(t, err)
	assertDecimal(t, "1", snapshot.HalfUsed)
	assertDecimal(t, "14", snapshot.AnnualLeft)
}

func TestBalance_SingleHalfday_CostsHalfDay(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-03-01")
	mustSubmit(t, engine, halfdayOn("kim@corp.io", "2025-03-10", ledger.HalfAM))

	snapshot, err := engine.Balances.Recompute(context.Background(), "kim@corp.io", "Kim")
	require.NoError(t, err)
	assertDecimal(t, "0.5", snapshot.HalfUsed)
	assertDecimal(t, "14.5", snapshot.AnnualLeft)
}

func TestBalance_NonBusinessDayRecords_ConsumeNothing(t *testing.T) {
	// Leave is not consumed on days the member would not have worked.
	engine, store := newTestEngine(t, "2025-03-01")
	addHoliday(t, engine, store, "2025-03-12")

	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-08"))  // Saturday
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-12")) // holiday

	snapshot, err := engine.Balances.Recompute(context.Background(), "kim@corp.io", "Kim")
	require.NoError(t, err)
	assertDecimal(t, "0", snapshot.AnnualUsed)
	assertDecimal(t, "15", snapshot.AnnualLeft)
}

func TestBalance_AnnualGovernsDateWithStrayHalfday(t *testing.T) {
	// The writer forbids mixing annual and halfday on one date, but the
	// ledger may hold hand-entered history that does. The annual record
	// alone governs such a date: 1.0, not 1.5.

	engine, store := newTestEngine(t, "2025-03-01")
	ctx := context.Background()
	for _, row := range []rowstore.Row{
		{"2025-03-10T09:00:00Z", "kim@corp.io", "Kim", "annual", "", "2025-03-10", "auto", "kim@corp.io"},
		{"2025-03-10T09:01:00Z", "kim@corp.io", "Kim", "halfday", "[am]", "2025-03-10", "auto", "kim@corp.io"},
	} {
		require.NoError(t, store.Append(ctx, rowstore.TableLogs, row))
	}

	snapshot, err := engine.Balances.Recompute(ctx, "kim@corp.io", "Kim")
	require.NoError(t, err)
	assertDecimal(t, "1", snapshot.AnnualUsed)
	assertDecimal(t, "0", snapshot.HalfUsed)
	assertDecimal(t, "14", snapshot.AnnualLeft)
}

func TestBalance_Recompute_Idempotent(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-03-01")
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-10"))

	first, err := engine.Balances.Recompute(context.Background(), "kim@corp.io", "Kim")
	require.NoError(t, err)
	second, err := engine.Balances.Recompute(context.Background(), "kim@corp.io", "Kim")
	require.NoError(t, err)

	assert.True(t, first.AnnualLeft.Equal(second.AnnualLeft))
	assert.True(t, first.AnnualUsed.Equal(second.AnnualUsed))
	assert.True(t, first.HalfUsed.Equal(second.HalfUsed))
}

func TestBalance_FlooredAtZero(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-03-01")
	_, err := engine.Balances.SetOverride(context.Background(), "kim@corp.io", "Kim", decimal.NewFromInt(1), nil)
	require.NoError(t, err)
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-10"))
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-11"))

	snapshot, err := engine.Balances.Recompute(context.Background(), "kim@corp.io", "Kim")
	require.NoError(t, err)
	assertDecimal(t, "0", snapshot.AnnualLeft)
}

// =============================================================================
// BASELINE: ADMINISTRATOR OVERRIDE
// =============================================================================

func TestBalance_Override_IgnoresUsageBeforeOverrideFrom(t *testing.T) {
	// GIVEN: override_left=5 effective 2025-06-01, one annual record
	//        before the window (March) and one inside it (Friday 06-13)
	// WHEN: The balance is recomputed
	// THEN: Only the in-window record counts: annual_left=4.0

	engine, _ := newTestEngine(t, "2025-03-01")
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-10")) // pre-override usage
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-06-13"))

	snapshot, err := engine.Balances.SetOverride(context.Background(), "kim@corp.io", "Kim",
		decimal.NewFromInt(5), datePtr("2025-06-01"))
	require.NoError(t, err)

	assertDecimal(t, "1", snapshot.AnnualUsed)
	assertDecimal(t, "4", snapshot.AnnualLeft)
	assert.Equal(t, "override", snapshot.Basis)
}

func TestBalance_OverrideWithoutFrom_CountsAllHistory(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-03-01")
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-10"))

	snapshot, err := engine.Balances.SetOverride(context.Background(), "kim@corp.io", "Kim",
		decimal.NewFromInt(5), nil)
	require.NoError(t, err)
	assertDecimal(t, "4", snapshot.AnnualLeft)
}

func TestBalance_NegativeOverride_Rejected(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-03-01")
	_, err := engine.Balances.SetOverride(context.Background(), "kim@corp.io", "Kim",
		decimal.NewFromInt(-1), nil)
	var ve *ledger.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestBalance_RowCreatedLazilyAndUpdatedInPlace(t *testing.T) {
	engine, store := newTestEngine(t, "2025-03-01")
	ctx := context.Background()

	_, err := engine.Balances.Recompute(ctx, "kim@corp.io", "Kim")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len(rowstore.TableBalances))

	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-03-10"))
	_, err = engine.Balances.Recompute(ctx, "kim@corp.io", "Kim")
	require.NoError(t, err)

	// Recomputation updates the existing row, never appends a second one.
	assert.Equal(t, 1, store.Len(rowstore.TableBalances))
	rows, err := store.ScanAll(ctx, rowstore.TableBalances)
	require.NoError(t, err)
	assert.Equal(t, "kim@corp.io", rows[0][0])
	assert.Equal(t, "1", rows[0][3])  // annual_used
	assert.Equal(t, "14", rows[0][4]) // annual_left
}

func datePtr(s string) *ledger.Date {
	d := ledger.MustDate(s)
	return &d
}
