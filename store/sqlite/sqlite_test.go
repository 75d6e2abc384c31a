package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/rowstore"
	"github.com/warp/attendance-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite_AppendPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, date := range []string{"2025-01-08", "2025-05-05", "2025-03-01"} {
		require.NoError(t, store.Append(ctx, rowstore.TableHolidays, rowstore.Row{date}))
	}

	rows, err := store.ScanAll(ctx, rowstore.TableHolidays)
	require.NoError(t, err)
	assert.Equal(t, []rowstore.Row{{"2025-01-08"}, {"2025-05-05"}, {"2025-03-01"}}, rows)
}

func TestSQLite_FullLogRowRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	row := rowstore.Row{"2025-03-10T09:00:00+09:00", "kim@corp.io", "Kim", "annual", "", "2025-03-10", "auto", "kim@corp.io"}
	require.NoError(t, store.Append(ctx, rowstore.TableLogs, row))

	rows, err := store.ScanAll(ctx, rowstore.TableLogs)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row, rows[0])
}

func TestSQLite_BatchUpdateByAddress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, rowstore.TableBalances,
		rowstore.Row{"kim@corp.io", "Kim", "15", "0", "15", "0", "", "", "2025-03-01T00:00:00Z", ""}))

	usedCol, err := rowstore.ColumnIndex(rowstore.TableBalances, "annual_used")
	require.NoError(t, err)
	leftCol, err := rowstore.ColumnIndex(rowstore.TableBalances, "annual_left")
	require.NoError(t, err)

	err = store.BatchUpdate(ctx, rowstore.TableBalances, []rowstore.CellUpdate{
		{Addr: rowstore.CellAddr{Row: 0, Col: usedCol}, Value: "1"},
		{Addr: rowstore.CellAddr{Row: 0, Col: leftCol}, Value: "14"},
	})
	require.NoError(t, err)

	rows, err := store.ScanAll(ctx, rowstore.TableBalances)
	require.NoError(t, err)
	assert.Equal(t, "1", rows[0][usedCol])
	assert.Equal(t, "14", rows[0][leftCol])
}

func TestSQLite_SchemaFaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ScanAll(ctx, "no_such_table")
	assert.True(t, rowstore.IsSchema(err))

	err = store.Append(ctx, rowstore.TableHolidays, rowstore.Row{"a", "b"})
	assert.True(t, rowstore.IsSchema(err))

	err = store.UpdateCell(ctx, rowstore.TableHolidays, rowstore.CellAddr{Row: 3, Col: 0}, "x")
	assert.True(t, rowstore.IsSchema(err))
}
