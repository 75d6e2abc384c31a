package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/rowstore"
)

func TestCalendar_WeekendIsNotBusinessDay(t *testing.T) {
	engine, _ := newTestEngine(t, "2025-01-01")

	saturday := ledger.MustDate("2025-01-11")
	sunday := ledger.MustDate("2025-01-12")
	monday := ledger.MustDate("2025-01-13")

	for _, d := range []ledger.Date{saturday, sunday} {
		business, err := engine.Calendar.IsBusinessDay(context.Background(), d)
		require.NoError(t, err)
		assert.False(t, business, "%s should not be a business day", d)
	}

	business, err := engine.Calendar.IsBusinessDay(context.Background(), monday)
	require.NoError(t, err)
	assert.True(t, business)
}

func TestCalendar_HolidayIsNotBusinessDay(t *testing.T) {
	// GIVEN: A weekday listed in the holidays table
	// WHEN: Classified after the cache is loaded
	// THEN: It is not a business day

	engine, store := newTestEngine(t, "2025-01-01")
	addHoliday(t, engine, store, "2025-01-08") // a Wednesday

	business, err := engine.Calendar.IsBusinessDay(context.Background(), ledger.MustDate("2025-01-08"))
	require.NoError(t, err)
	assert.False(t, business)
}

func TestCalendar_CacheIsStaleUntilRefresh(t *testing.T) {
	// GIVEN: A calendar that already loaded its holiday set
	// WHEN: A holiday row is added without a refresh
	// THEN: The stale cache still calls the day a business day,
	//       and Refresh picks the edit up

	engine, store := newTestEngine(t, "2025-01-01")
	ctx := context.Background()
	require.NoError(t, engine.Calendar.Refresh(ctx))

	wednesday := ledger.MustDate("2025-01-08")
	require.NoError(t, store.Append(ctx, rowstore.TableHolidays, rowstore.Row{"2025-01-08"}))

	business, err := engine.Calendar.IsBusinessDay(ctx, wednesday)
	require.NoError(t, err)
	assert.True(t, business, "edit must not be visible before refresh")

	require.NoError(t, engine.Calendar.Refresh(ctx))
	business, err = engine.Calendar.IsBusinessDay(ctx, wednesday)
	require.NoError(t, err)
	assert.False(t, business)
}

func TestCalendar_MalformedHolidayRowsIgnored(t *testing.T) {
	engine, store := newTestEngine(t, "2025-01-01")
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, rowstore.TableHolidays, rowstore.Row{"not-a-date"}))
	require.NoError(t, store.Append(ctx, rowstore.TableHolidays, rowstore.Row{"2025-01-08"}))

	require.NoError(t, engine.Calendar.Refresh(ctx))
	dates, err := engine.Calendar.Holidays(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Date{ledger.MustDate("2025-01-08")}, dates)
}
