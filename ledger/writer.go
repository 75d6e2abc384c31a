/*
writer.go - Idempotent ledger writer

PURPOSE:
  The only path that appends attendance records. Serializes concurrent
  submissions for the same logical key, re-runs the conflict detector
  inside the guard, enforces the write policy, then appends through the
  retry executor.

ALGORITHM (GuardedAppend):
  1. Validate the submission (no store access on failure).
  2. Test-and-insert the idempotency key `user|kind|date` into the
     process-local in-flight set; fail fast with ErrInFlight if present.
  3. Re-check the conflict detector against current store state.
  4. Enforce backdating / future-year policy.
  5. Append through the retry executor.
  6. Release the key on every exit path.

GUARANTEE:
  Within one process, no two concurrent invocations for the same
  (user, kind, date) can both succeed. Across processes the detector
  re-check narrows but does not close the race; a store-side unique
  constraint would be needed for a hard guarantee.

SEE ALSO:
  - detector.go: the conflict rules re-checked in step 3
  - span.go:     drives one GuardedAppend per savable date
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/rowstore"
)

// =============================================================================
// IN-FLIGHT KEY SET
// =============================================================================

// inflightSet holds idempotency keys currently being written. Membership
// lasts for the duration of one guarded write, store round trip included.
// One mutex guards the map; contention is only among submissions for the
// identical key, which is exactly the case being serialized.
type inflightSet struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newInflightSet() *inflightSet {
	return &inflightSet{keys: make(map[string]bool)}
}

// acquire atomically tests and inserts. Reports false if already held.
func (s *inflightSet) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false
	}
	s.keys[key] = true
	return true
}

func (s *inflightSet) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

// idempotencyKey derives the logical identity of a submission.
func idempotencyKey(userKey string, kind ActionKind, date Date) string {
	return strings.ToLower(strings.TrimSpace(userKey)) + "|" + strings.ToLower(string(kind)) + "|" + date.String()
}

// =============================================================================
// WRITER
// =============================================================================

// Submission is one normalized write request. The caller (the UI layer,
// excluded from this engine) has already resolved identity; UserKey and
// DisplayName arrive as primitives.
type Submission struct {
	UserKey     string
	DisplayName string
	Kind        ActionKind
	Note        string
	Date        Date // zero value means "today" in the ledger timezone
	Half        HalfPeriod
	RecordedBy  string // acting party; empty means self
	Source      string // SourceAuto unless administrator-entered
}

// Writer appends attendance records with at-most-one-per-key semantics
// within this process.
type Writer struct {
	client   rowstore.Client
	detector *Detector
	retry    *Retryer
	clock    Clock
	inflight *inflightSet
	log      *zap.Logger
}

func NewWriter(client rowstore.Client, detector *Detector, retry *Retryer, clock Clock, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		client:   client,
		detector: detector,
		retry:    retry,
		clock:    clock,
		inflight: newInflightSet(),
		log:      log,
	}
}

// GuardedAppend writes one attendance record, or explains why it won't.
func (w *Writer) GuardedAppend(ctx context.Context, sub Submission, pol WritePolicy) error {
	if err := w.validate(&sub); err != nil {
		return err
	}

	key := idempotencyKey(sub.UserKey, sub.Kind, sub.Date)
	if !w.inflight.acquire(key) {
		return fmt.Errorf("%s: %w", key, ErrInFlight)
	}
	defer w.inflight.release(key)

	// Re-check against current store state. The earlier pre-ack check
	// may be arbitrarily stale by now.
	reason, err := w.detector.CheckConflict(ctx, sub.UserKey, sub.Kind, sub.Date, sub.Half)
	if err != nil {
		return err
	}
	if reason != "" {
		return &ConflictError{UserKey: sub.UserKey, Kind: sub.Kind, Date: sub.Date, Reason: reason}
	}

	if err := w.checkPolicy(sub, pol); err != nil {
		return err
	}

	rec := w.record(sub)
	err = w.retry.Do(ctx, "append log", func(ctx context.Context) error {
		return w.client.Append(ctx, rowstore.TableLogs, rec.row())
	})
	if err != nil {
		return err
	}

	w.log.Info("ledger record written",
		zap.String("user", rec.UserKey),
		zap.String("kind", string(rec.Kind)),
		zap.String("date", rec.EffectiveDate.String()),
		zap.String("source", rec.Source))
	return nil
}

func (w *Writer) validate(sub *Submission) error {
	if strings.TrimSpace(sub.UserKey) == "" {
		return &ValidationError{Field: "user_key", Message: "required"}
	}
	if !sub.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown action kind %q", sub.Kind)}
	}
	if sub.Kind == KindHalfDay && !sub.Half.Valid() {
		return &ValidationError{Field: "half", Message: "halfday requires am or pm"}
	}
	if sub.Date.IsZero() {
		sub.Date = w.clock.Today()
	}
	if sub.Source == "" {
		sub.Source = SourceAuto
	}
	if sub.RecordedBy == "" {
		sub.RecordedBy = sub.UserKey
	}
	return nil
}

func (w *Writer) checkPolicy(sub Submission, pol WritePolicy) error {
	today := w.clock.Today()
	if !pol.AllowBackdate && sub.Date.Before(today) {
		return &ValidationError{Field: "date", Message: fmt.Sprintf("%s is in the past", sub.Date)}
	}
	if !pol.AllowFutureYear && sub.Date.Year != today.Year {
		return &ValidationError{Field: "date", Message: fmt.Sprintf("%s is outside the current year", sub.Date)}
	}
	return nil
}

func (w *Writer) record(sub Submission) Record {
	note := strings.TrimSpace(sub.Note)
	if sub.Kind == KindHalfDay {
		note = NoteWithHalf(note, sub.Half)
	}
	return Record{
		RecordedAt:    w.clock.Now(),
		UserKey:       strings.TrimSpace(sub.UserKey),
		DisplayName:   strings.TrimSpace(sub.DisplayName),
		Kind:          sub.Kind,
		Note:          note,
		EffectiveDate: sub.Date,
		Source:        sub.Source,
		RecordedBy:    sub.RecordedBy,
	}
}
