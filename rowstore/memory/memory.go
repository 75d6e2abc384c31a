// Package memory provides an in-memory rowstore.Client for tests and dev.
package memory

import (
	"context"
	"sync"

	"github.com/warp/attendance-engine/rowstore"
)

// Store holds every required table in memory. It is safe for concurrent
// use and supports scripted fault injection so the retry path can be
// exercised without a real backend.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]rowstore.Row

	// faults holds errors returned ahead of real work, consumed FIFO,
	// one per operation. nil entries mean "succeed this time".
	faults []error
}

func New() *Store {
	tables := make(map[string][]rowstore.Row, len(rowstore.Schemas))
	for name := range rowstore.Schemas {
		tables[name] = nil
	}
	return &Store{tables: tables}
}

// FailNext scripts the outcome of upcoming operations. Each call to any
// Client method consumes one entry before touching table data.
func (s *Store) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, errs...)
}

// DropTable removes a table so schema-fault paths can be tested.
func (s *Store) DropTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

// Len returns the number of data rows in a table. Test helper.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func (s *Store) nextFaultLocked() error {
	if len(s.faults) == 0 {
		return nil
	}
	err := s.faults[0]
	s.faults = s.faults[1:]
	return err
}

func (s *Store) rowsLocked(table string) ([]rowstore.Row, error) {
	rows, ok := s.tables[table]
	if !ok {
		return nil, &rowstore.SchemaError{Table: table, Detail: "unknown table"}
	}
	return rows, nil
}

func (s *Store) ScanAll(_ context.Context, table string) ([]rowstore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextFaultLocked(); err != nil {
		return nil, err
	}
	rows, err := s.rowsLocked(table)
	if err != nil {
		return nil, err
	}
	out := make([]rowstore.Row, len(rows))
	for i, r := range rows {
		out[i] = append(rowstore.Row(nil), r...)
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, table string, row rowstore.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextFaultLocked(); err != nil {
		return err
	}
	if _, err := s.rowsLocked(table); err != nil {
		return err
	}
	if want := len(rowstore.Schemas[table]); len(row) != want {
		return &rowstore.SchemaError{Table: table, Detail: "row width mismatch"}
	}
	s.tables[table] = append(s.tables[table], append(rowstore.Row(nil), row...))
	return nil
}

func (s *Store) UpdateCell(_ context.Context, table string, addr rowstore.CellAddr, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextFaultLocked(); err != nil {
		return err
	}
	return s.updateLocked(table, addr, value)
}

func (s *Store) BatchUpdate(_ context.Context, table string, updates []rowstore.CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextFaultLocked(); err != nil {
		return err
	}
	for _, u := range updates {
		if err := s.updateLocked(table, u.Addr, u.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) updateLocked(table string, addr rowstore.CellAddr, value string) error {
	rows, err := s.rowsLocked(table)
	if err != nil {
		return err
	}
	if addr.Row < 0 || addr.Row >= len(rows) {
		return &rowstore.SchemaError{Table: table, Detail: "row out of range"}
	}
	if addr.Col < 0 || addr.Col >= len(rowstore.Schemas[table]) {
		return &rowstore.SchemaError{Table: table, Detail: "column out of range"}
	}
	rows[addr.Row][addr.Col] = value
	return nil
}
