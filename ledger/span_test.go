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

// =============================================================================
// RESOLUTION
// =============================================================================

func TestSpanResolver_AnnualWeekWithHoliday(t *testing.T) {
	// GIVEN: Mon 2025-01-06 .. Sun 2025-01-12 with a holiday on Wed 01-08
	// WHEN: An annual span is resolved
	// THEN: Exactly 06, 07, 09, 10 are savable; 08 (holiday) and the
	//       weekend 11, 12 are skipped with reasons

	engine, store := newTestEngine(t, "2025-01-01")
	addHoliday(t, engine, store, "2025-01-08")

	plan, err := engine.Spans.Resolve(context.Background(), "kim@corp.io", ledger.KindAnnual, "",
		ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-12"), ledger.PolicyFor(ledger.RoleMember))
	require.NoError(t, err)

	assert.Equal(t, []ledger.Date{
		ledger.MustDate("2025-01-06"),
		ledger.MustDate("2025-01-07"),
		ledger.MustDate("2025-01-09"),
		ledger.MustDate("2025-01-10"),
	}, plan.Savable)

	require.Len(t, plan.Skipped, 3)
	for _, s := range plan.Skipped {
		assert.Equal(t, "not a business day", s.Reason)
	}
}

func TestSpanResolver_InvertedRange_EmptyPlanNoError(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-01-01")

	plan, err := engine.Spans.Resolve(context.Background(), "kim@corp.io", ledger.KindAnnual, "",
		ledger.MustDate("2025-01-10"), ledger.MustDate("2025-01-06"), ledger.PolicyFor(ledger.RoleMember))
	require.NoError(t, err)
	assert.Empty(t, plan.Savable)
	assert.Empty(t, plan.Skipped)
}

func TestSpanResolver_ExistingRecordsSkippedWithReason(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-01-01")
	mustSubmit(t, engine, annualOn("kim@corp.io", "2025-01-07"))

	plan, err := engine.Spans.Resolve(context.Background(), "kim@corp.io", ledger.KindAnnual, "",
		ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-08"), ledger.PolicyFor(ledger.RoleMember))
	require.NoError(t, err)

	assert.Equal(t, []ledger.Date{ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-08")}, plan.Savable)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, ledger.MustDate("2025-01-07"), plan.Skipped[0].Date)
	assert.Contains(t, plan.Skipped[0].Reason, "already recorded")
}

func TestSpanResolver_OffSpanIteratesPlainCalendarDays(t *testing.T) {
	// Off requests are not filtered by business-day status: a member may
	// explicitly log a non-working day.
	engine, store := newTestEngine(t, "2025-01-01")
	addHoliday(t, engine, store, "2025-01-08")

	plan, err := engine.Spans.Resolve(context.Background(), "kim@corp.io", ledger.KindOff, "",
		ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-12"), ledger.PolicyFor(ledger.RoleMember))
	require.NoError(t, err)
	assert.Len(t, plan.Savable, 7)
}

func TestSpanResolver_AdminMayIncludeNonBusinessDays(t *testing.T) {
	engine, store := newTestEngine(t, "2025-01-01")
	addHoliday(t, engine, store, "2025-01-08")

	pol := ledger.PolicyFor(ledger.RoleAdmin)
	pol.IncludeNonBusinessDays = true

	plan, err := engine.Spans.Resolve(context.Background(), "kim@corp.io", ledger.KindAnnual, "",
		ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-12"), pol)
	require.NoError(t, err)
	assert.Len(t, plan.Savable, 7)
}

// =============================================================================
// COMMIT
// =============================================================================

func TestSpanCommit_OverdrawRefusesWholeBatch(t *testing.T) {
	// GIVEN: A member with 2.0 days left (override)
	// WHEN: A 4-business-day annual span is committed
	// THEN: The whole batch is refused, nothing is written

	engine, store := newTestEngine(t, "2025-01-01")
	_, err := engine.Balances.SetOverride(context.Background(), "kim@corp.io", "Kim", decimal.NewFromInt(2), nil)
	require.NoError(t, err)

	sub := ledger.Submission{UserKey: "kim@corp.io", Kind: ledger.KindAnnual}
	pol := ledger.PolicyFor(ledger.RoleMember)
	plan, err := engine.Spans.Resolve(context.Background(), sub.UserKey, sub.Kind, "",
		ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-10"), pol)
	require.NoError(t, err)
	require.Len(t, plan.Savable, 5)

	_, err = engine.Spans.Commit(context.Background(), sub, plan, pol)
	assert.ErrorIs(t, err, ledger.ErrOverdraw)
	assert.Equal(t, 0, store.Len(rowstore.TableLogs))
}

func TestSpanCommit_WritesEverySavableDay(t *testing.T) {
	engine, store := newTestEngine(t, "2025-01-01")

	sub := ledger.Submission{UserKey: "kim@corp.io", DisplayName: "Kim", Kind: ledger.KindAnnual}
	report, err := engine.SubmitSpan(context.Background(), sub,
		ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-10"), ledger.PolicyFor(ledger.RoleMember))
	require.NoError(t, err)

	assert.Len(t, report.Saved, 5)
	assert.Empty(t, report.Failed)
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 5, store.Len(rowstore.TableLogs))
}

func TestSpanCommit_IndividualDayFailureDoesNotAbortBatch(t *testing.T) {
	// GIVEN: A 3-day plan where the store hard-fails one day's append
	// WHEN: The plan is committed
	// THEN: The other days land; the failed day is reported, not fatal

	engine, store := newTestEngine(t, "2025-01-01")

	sub := ledger.Submission{UserKey: "kim@corp.io", Kind: ledger.KindOff}
	pol := ledger.PolicyFor(ledger.RoleMember)
	plan, err := engine.Spans.Resolve(context.Background(), sub.UserKey, sub.Kind, "",
		ledger.MustDate("2025-01-06"), ledger.MustDate("2025-01-08"), pol)
	require.NoError(t, err)
	require.Len(t, plan.Savable, 3)

	// Day 1 commit: conflict scan ok, append ok. Day 2: scan ok, then
	// exhaust the append's whole retry budget. Day 3: clean.
	store.FailNext(nil, nil, nil,
		rowstore.ErrUnavailable, rowstore.ErrUnavailable, rowstore.ErrUnavailable)

	report, err := engine.Spans.Commit(context.Background(), sub, plan, pol)
	require.NoError(t, err)
	assert.Len(t, report.Saved, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, ledger.MustDate("2025-01-07"), report.Failed[0].Date)
	assert.Equal(t, 2, store.Len(rowstore.TableLogs))
}
