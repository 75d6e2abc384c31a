/*
Package sqlite provides a SQLite-backed implementation of rowstore.Client.

PURPOSE:
  Persists the engine's tables (logs, balances, admin_requests, holidays,
  schedule) in SQLite. Each logical table becomes one SQL table with TEXT
  columns named per the rowstore schema plus a monotonic seq column that
  preserves append order, so ScanAll returns rows in the order they were
  appended and cell addresses stay stable.

WAL MODE:
  The database is opened with WAL so readers do not block the single
  writer and crash recovery is sane.

ERROR CLASSIFICATION:
  SQLITE_BUSY / SQLITE_LOCKED are wrapped as rowstore.ErrUnavailable so
  the retry executor treats them as transient. A missing table surfaces
  as a rowstore.SchemaError, which is never retried.

CONCURRENCY:
  A sync.Mutex serializes writes; SQLite allows one writer at a time
  anyway and the engine assumes a single writer process.

SEE ALSO:
  - rowstore: the interface and schemas implemented here
  - rowstore/memory: the in-memory implementation tests use
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/rowstore"
)

// Store implements rowstore.Client on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (and migrates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	for table, header := range rowstore.Schemas {
		cols := make([]string, 0, len(header)+1)
		cols = append(cols, "seq INTEGER PRIMARY KEY AUTOINCREMENT")
		for _, name := range header {
			cols = append(cols, fmt.Sprintf("%q TEXT NOT NULL DEFAULT ''", name))
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", table, strings.Join(cols, ", "))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

func header(table string) ([]string, error) {
	h, ok := rowstore.Schemas[table]
	if !ok {
		return nil, &rowstore.SchemaError{Table: table, Detail: "unknown table"}
	}
	return h, nil
}

// classify wraps driver faults so the retry layer can tell transient
// from fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", rowstore.ErrUnavailable, err)
		}
	}
	if strings.Contains(err.Error(), "no such table") {
		return &rowstore.SchemaError{Detail: err.Error()}
	}
	return err
}

func (s *Store) ScanAll(ctx context.Context, table string) ([]rowstore.Row, error) {
	h, err := header(table)
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(h))
	for i, name := range h {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q ORDER BY seq", strings.Join(quoted, ", "), table)

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []rowstore.Row
	for rows.Next() {
		cells := make([]string, len(h))
		scan := make([]any, len(h))
		for i := range cells {
			scan[i] = &cells[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, classify(err)
		}
		out = append(out, rowstore.Row(cells))
	}
	return out, classify(rows.Err())
}

func (s *Store) Append(ctx context.Context, table string, row rowstore.Row) error {
	h, err := header(table)
	if err != nil {
		return err
	}
	if len(row) != len(h) {
		return &rowstore.SchemaError{Table: table, Detail: "row width mismatch"}
	}
	quoted := make([]string, len(h))
	marks := make([]string, len(h))
	args := make([]any, len(h))
	for i, name := range h {
		quoted[i] = fmt.Sprintf("%q", name)
		marks[i] = "?"
		args[i] = row[i]
	}
	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(marks, ", "))

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, stmt, args...)
	return classify(err)
}

func (s *Store) UpdateCell(ctx context.Context, table string, addr rowstore.CellAddr, value string) error {
	return s.BatchUpdate(ctx, table, []rowstore.CellUpdate{{Addr: addr, Value: value}})
}

// BatchUpdate applies all updates in one SQL transaction. Cell row
// indices address data rows in append (seq) order.
func (s *Store) BatchUpdate(ctx context.Context, table string, updates []rowstore.CellUpdate) error {
	h, err := header(table)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		if u.Addr.Col < 0 || u.Addr.Col >= len(h) {
			return &rowstore.SchemaError{Table: table, Detail: "column out of range"}
		}
		stmt := fmt.Sprintf(
			"UPDATE %q SET %q = ? WHERE seq = (SELECT seq FROM %q ORDER BY seq LIMIT 1 OFFSET ?)",
			table, h[u.Addr.Col], table)
		res, err := tx.ExecContext(ctx, stmt, u.Value, u.Addr.Row)
		if err != nil {
			return classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if n == 0 {
			return &rowstore.SchemaError{Table: table, Detail: "row out of range"}
		}
	}
	return classify(tx.Commit())
}
