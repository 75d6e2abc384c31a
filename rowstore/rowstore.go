/*
Package rowstore defines the table API the attendance engine persists through.

PURPOSE:
  The engine treats its backing store as a slow, occasionally-failing,
  eventually-consistent collection of named tables, each described by an
  ordered header row. This package defines that contract plus the table
  schemas the engine requires. It deliberately knows nothing about
  attendance semantics - it moves string cells around.

TABLES:
  logs            append-only attendance ledger
  balances        one mutable row per member, derived
  admin_requests  append-only audit of administrator write attempts
  holidays        one date per row, consumed by the business calendar
  schedule        reserved for per-member schedule overrides

CONSISTENCY CONTRACT:
  - Append is at-least-once under retry; callers own idempotency.
  - ScanAll reflects "eventually visible to the next scan", nothing stronger.
  - No ordering guarantees across rows.

ERROR CLASSIFICATION:
  Implementations wrap their failures in the sentinels below so the retry
  layer can tell transient faults (retry) from schema faults (never retry).

IMPLEMENTATIONS:
  - rowstore/memory: in-memory, fault-injectable, for tests
  - store/sqlite:    SQLite-backed, for production

SEE ALSO:
  - ledger/retry.go: retries operations classified transient here
*/
package rowstore

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// TABLES AND SCHEMAS
// =============================================================================

const (
	TableLogs          = "logs"
	TableBalances      = "balances"
	TableAdminRequests = "admin_requests"
	TableHolidays      = "holidays"
	TableSchedule      = "schedule"
)

// Schemas maps each required table to its ordered header row.
// Implementations must reject tables or columns outside these schemas.
var Schemas = map[string][]string{
	TableLogs:          {"recorded_at", "user_key", "user_name", "kind", "note", "effective_date", "source", "recorded_by"},
	TableBalances:      {"user_key", "user_name", "annual_total", "annual_used", "annual_left", "half_used", "override_left", "override_from", "last_update", "notes"},
	TableAdminRequests: {"ts", "admin_key", "target_key", "action", "date", "note", "result", "error"},
	TableHolidays:      {"date"},
	TableSchedule:      {"user_key", "weekday", "working"},
}

// ColumnIndex returns the position of a column in a table's header row.
// A miss is a schema fault, not a transient one.
func ColumnIndex(table, column string) (int, error) {
	header, ok := Schemas[table]
	if !ok {
		return 0, &SchemaError{Table: table, Detail: "unknown table"}
	}
	for i, name := range header {
		if name == column {
			return i, nil
		}
	}
	return 0, &SchemaError{Table: table, Column: column, Detail: "unknown column"}
}

// =============================================================================
// CLIENT - The append/scan interface the engine consumes
// =============================================================================

// Row is one data row, cells ordered per the table's header.
type Row []string

// CellAddr identifies one cell: Row is the zero-based index into the data
// rows (the header row is not addressable), Col the zero-based column.
type CellAddr struct {
	Row int
	Col int
}

// CellUpdate pairs an address with its new value, for batch writes.
type CellUpdate struct {
	Addr  CellAddr
	Value string
}

// Client is the row-store contract. All methods block; callers wrap them
// in the retry executor rather than expecting the store to retry itself.
type Client interface {
	// ScanAll returns every data row of the table, header excluded.
	ScanAll(ctx context.Context, table string) ([]Row, error)

	// Append adds one row after the last data row.
	Append(ctx context.Context, table string, row Row) error

	// UpdateCell overwrites a single cell in place.
	UpdateCell(ctx context.Context, table string, addr CellAddr, value string) error

	// BatchUpdate applies all updates; implementations should make this
	// atomic where their backend allows, but callers must not rely on it.
	BatchUpdate(ctx context.Context, table string, updates []CellUpdate) error
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

var (
	// ErrUnavailable marks a transient fault: timeout, connection reset,
	// backend briefly down. Safe to retry.
	ErrUnavailable = errors.New("row store unavailable")

	// ErrRateLimited marks a transient fault where the backend asked us to
	// slow down. Safe to retry after backoff.
	ErrRateLimited = errors.New("row store rate limited")
)

// SchemaError reports a missing table or column. Configuration problem,
// never retried.
type SchemaError struct {
	Table  string
	Column string
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema: table %q column %q: %s", e.Table, e.Column, e.Detail)
	}
	return fmt.Sprintf("schema: table %q: %s", e.Table, e.Detail)
}

// IsTransient reports whether an operation that returned err may succeed
// if simply tried again.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

// IsSchema reports whether err is a schema/configuration fault.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
