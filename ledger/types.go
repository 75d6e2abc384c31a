/*
Package ledger is the attendance ledger and balance-reconciliation engine.

PURPOSE:
  Records time-and-attendance facts (check-in/out, full-day leave, half-day
  leave, unpaid leave) for members of an organization and derives each
  member's remaining leave balance from the ledger history.

KEY CONCEPTS IN THIS FILE (types.go):
  - ActionKind:   what a ledger row records (checkin, checkout, annual, ...)
  - Date:         a plain calendar day, the unit leave is consumed in
  - Record:       one immutable attendance fact
  - BalanceRow:   one mutable derived row per member
  - Clock:        the ledger's notion of "now" and "today", timezone-aware

DESIGN PRINCIPLES:
  1. Append-only: records are created once, never mutated or deleted.
     Corrections are new records plus administrative review.
  2. Precision: balance arithmetic uses decimal.Decimal, never float64.
  3. Derived state: a balance row is always recomputable from the ledger.

SEE ALSO:
  - writer.go:   the only path that appends records
  - balance.go:  recomputes balance rows from records
  - errors.go:   the error taxonomy callers branch on
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/rowstore"
)

// =============================================================================
// ACTION KINDS
// =============================================================================

type ActionKind string

const (
	KindCheckIn  ActionKind = "checkin"
	KindCheckOut ActionKind = "checkout"
	KindAnnual   ActionKind = "annual"
	KindHalfDay  ActionKind = "halfday"
	KindOff      ActionKind = "off"
)

func (k ActionKind) Valid() bool {
	switch k {
	case KindCheckIn, KindCheckOut, KindAnnual, KindHalfDay, KindOff:
		return true
	}
	return false
}

// IsLeave reports whether the kind consumes or reserves leave days.
func (k ActionKind) IsLeave() bool {
	return k == KindAnnual || k == KindHalfDay || k == KindOff
}

// HalfPeriod tags which half of the day a halfday record covers.
type HalfPeriod string

const (
	HalfAM HalfPeriod = "am"
	HalfPM HalfPeriod = "pm"
)

func (h HalfPeriod) Valid() bool { return h == HalfAM || h == HalfPM }

// The half-period tag rides in the note column as a bracketed suffix,
// e.g. "dentist [am]". The logs schema has no dedicated column for it.
func halfMarker(h HalfPeriod) string { return "[" + string(h) + "]" }

// NoteWithHalf appends the half-period marker to a note.
func NoteWithHalf(note string, h HalfPeriod) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return halfMarker(h)
	}
	return note + " " + halfMarker(h)
}

// HalfPeriodOf extracts the half-period tag from a halfday note.
// Records written without a tag count as untagged (ok=false); the
// detector treats them as conflicting with every half-period.
func HalfPeriodOf(note string) (HalfPeriod, bool) {
	note = strings.TrimSpace(note)
	for _, h := range []HalfPeriod{HalfAM, HalfPM} {
		if strings.HasSuffix(note, halfMarker(h)) {
			return h, true
		}
	}
	return "", false
}

// Source values for the logs source column.
const (
	SourceAuto  = "auto"  // self-service submission
	SourceAdmin = "admin" // administrator-entered
)

// =============================================================================
// DATE - A plain calendar day
// =============================================================================

// Date is a calendar day with no time or timezone attached. Leave is
// consumed in whole calendar days, so the engine compares dates, never
// timestamps.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses YYYY-MM-DD. Anything else is a validation fault.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// MustDate is for tests and constants.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string { return d.time().Format(dateLayout) }

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) Next() Date {
	t := d.time().AddDate(0, 0, 1)
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) Before(other Date) bool { return d.time().Before(other.time()) }
func (d Date) After(other Date) bool  { return d.time().After(other.time()) }

// =============================================================================
// CLOCK - The ledger's notion of time
// =============================================================================

// Clock pins "now" to the ledger timezone. The original deployment runs
// its ledger clock in Asia/Seoul; effective dates and recorded_at
// timestamps must agree on what "today" means regardless of server zone.
type Clock struct {
	Loc *time.Location

	// NowFunc overrides the wall clock in tests. Nil means time.Now.
	NowFunc func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Loc: loc}
}

func (c Clock) Now() time.Time {
	now := time.Now()
	if c.NowFunc != nil {
		now = c.NowFunc()
	}
	return now.In(c.Loc)
}

func (c Clock) Today() Date {
	now := c.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// =============================================================================
// RECORD - One attendance fact (logs table)
// =============================================================================

// Record is one immutable attendance fact. At most one record exists per
// (user, kind, effective date), except halfday which allows one per
// half-period tag. DisplayName is a snapshot, not authoritative.
type Record struct {
	RecordedAt    time.Time
	UserKey       string
	DisplayName   string
	Kind          ActionKind
	Note          string
	EffectiveDate Date
	Source        string
	RecordedBy    string
}

func (r Record) row() rowstore.Row {
	return rowstore.Row{
		r.RecordedAt.Format(time.RFC3339),
		r.UserKey,
		r.DisplayName,
		string(r.Kind),
		r.Note,
		r.EffectiveDate.String(),
		r.Source,
		r.RecordedBy,
	}
}

// parseRecord tolerates malformed rows by skipping them: the scan path
// must not let one hand-edited row take the whole ledger down.
func parseRecord(row rowstore.Row) (Record, bool) {
	if len(row) < len(rowstore.Schemas[rowstore.TableLogs]) {
		return Record{}, false
	}
	kind := ActionKind(strings.TrimSpace(row[3]))
	if !kind.Valid() {
		return Record{}, false
	}
	date, err := ParseDate(row[5])
	if err != nil {
		return Record{}, false
	}
	recordedAt, _ := time.Parse(time.RFC3339, row[0])
	return Record{
		RecordedAt:    recordedAt,
		UserKey:       row[1],
		DisplayName:   row[2],
		Kind:          kind,
		Note:          row[4],
		EffectiveDate: date,
		Source:        row[6],
		RecordedBy:    row[7],
	}, true
}

// =============================================================================
// BALANCE ROW - One mutable derived row per member (balances table)
// =============================================================================

// BalanceRow mirrors one row of the balances table. AnnualTotal is the
// accrual baseline; an administrator override, when set, supersedes it
// from OverrideFrom onward.
type BalanceRow struct {
	UserKey      string
	DisplayName  string
	AnnualTotal  decimal.Decimal
	AnnualUsed   decimal.Decimal
	AnnualLeft   decimal.Decimal
	HalfUsed     decimal.Decimal
	OverrideLeft *decimal.Decimal
	OverrideFrom *Date
	LastUpdate   time.Time
	Notes        string
}

// Baseline returns the quantity usage is subtracted from, and a short
// description of which basis applies.
func (b BalanceRow) Baseline() (decimal.Decimal, string) {
	if b.OverrideLeft != nil {
		return *b.OverrideLeft, "override"
	}
	return b.AnnualTotal, "annual total"
}

func (b BalanceRow) row() rowstore.Row {
	overrideLeft, overrideFrom := "", ""
	if b.OverrideLeft != nil {
		overrideLeft = b.OverrideLeft.String()
	}
	if b.OverrideFrom != nil {
		overrideFrom = b.OverrideFrom.String()
	}
	return rowstore.Row{
		b.UserKey,
		b.DisplayName,
		b.AnnualTotal.String(),
		b.AnnualUsed.String(),
		b.AnnualLeft.String(),
		b.HalfUsed.String(),
		overrideLeft,
		overrideFrom,
		b.LastUpdate.Format(time.RFC3339),
		b.Notes,
	}
}

func parseBalanceRow(row rowstore.Row) (BalanceRow, bool) {
	if len(row) < len(rowstore.Schemas[rowstore.TableBalances]) {
		return BalanceRow{}, false
	}
	b := BalanceRow{
		UserKey:     row[0],
		DisplayName: row[1],
		Notes:       row[9],
	}
	b.AnnualTotal = parseDecimal(row[2])
	b.AnnualUsed = parseDecimal(row[3])
	b.AnnualLeft = parseDecimal(row[4])
	b.HalfUsed = parseDecimal(row[5])
	if strings.TrimSpace(row[6]) != "" {
		v := parseDecimal(row[6])
		b.OverrideLeft = &v
	}
	if strings.TrimSpace(row[7]) != "" {
		if d, err := ParseDate(row[7]); err == nil {
			b.OverrideFrom = &d
		}
	}
	b.LastUpdate, _ = time.Parse(time.RFC3339, row[8])
	return b, true
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// BALANCE SNAPSHOT - What a balance inquiry returns
// =============================================================================

// BalanceSnapshot is the computed state handed back to callers. Basis
// names which baseline governed the computation.
type BalanceSnapshot struct {
	UserKey     string
	DisplayName string
	AnnualTotal decimal.Decimal
	AnnualUsed  decimal.Decimal
	HalfUsed    decimal.Decimal
	AnnualLeft  decimal.Decimal
	Basis       string
}
