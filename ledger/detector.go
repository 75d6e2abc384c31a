/*
detector.go - Duplicate and conflict detection against current ledger state

PURPOSE:
  Decides whether a new record would duplicate or conflict with what the
  ledger already holds. Consulted twice per request: once early for
  pre-acknowledgment feedback, and once inside the guarded write path to
  close the race between validation and commit.

RULES (in order):
  checkin/checkout  conflict if the same kind exists for that date
  annual            conflict if annual exists, OR any halfday exists
  halfday           conflict if same half-period exists, OR annual exists
  off               conflict if off exists for that date

  annual and halfday are strictly mutually exclusive on a date, in both
  orders. A halfday is not allowed to "complete" into a full day.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/attendance-engine/rowstore"
)

// Detector answers "would this record duplicate or conflict?". It holds
// no state; every check scans current store rows through the retryer.
type Detector struct {
	client rowstore.Client
	retry  *Retryer
}

func NewDetector(client rowstore.Client, retry *Retryer) *Detector {
	return &Detector{client: client, retry: retry}
}

// CheckConflict returns a human-readable reason when a (user, kind, date)
// submission conflicts with an existing record, or "" when it is clear.
// half is only consulted for KindHalfDay.
func (d *Detector) CheckConflict(ctx context.Context, userKey string, kind ActionKind, date Date, half HalfPeriod) (string, error) {
	records, err := scanUserRecords(ctx, d.client, d.retry, userKey)
	if err != nil {
		return "", err
	}
	return conflictReason(records, kind, date, half), nil
}

// conflictReason applies the rules against an already-loaded record set.
// Split out so the guarded write path and the span resolver can reuse one
// scan across many dates.
func conflictReason(records []Record, kind ActionKind, date Date, half HalfPeriod) string {
	var sameKind, annual bool
	halfPeriods := map[HalfPeriod]bool{}
	var untaggedHalf bool

	for _, rec := range records {
		if rec.EffectiveDate != date {
			continue
		}
		if rec.Kind == kind {
			sameKind = true
		}
		switch rec.Kind {
		case KindAnnual:
			annual = true
		case KindHalfDay:
			if h, ok := HalfPeriodOf(rec.Note); ok {
				halfPeriods[h] = true
			} else {
				untaggedHalf = true
			}
		}
	}
	anyHalf := untaggedHalf || len(halfPeriods) > 0

	switch kind {
	case KindCheckIn, KindCheckOut, KindOff:
		if sameKind {
			return fmt.Sprintf("%s already recorded for %s", kind, date)
		}
	case KindAnnual:
		if annual {
			return fmt.Sprintf("annual leave already recorded for %s", date)
		}
		if anyHalf {
			return fmt.Sprintf("half-day leave already recorded for %s; annual and half-day are mutually exclusive", date)
		}
	case KindHalfDay:
		if annual {
			return fmt.Sprintf("annual leave already recorded for %s; annual and half-day are mutually exclusive", date)
		}
		if untaggedHalf || halfPeriods[half] {
			return fmt.Sprintf("half-day (%s) already recorded for %s", half, date)
		}
	}
	return ""
}

// scanUserRecords loads every ledger record for one user. Shared by the
// detector, the span resolver, and the balance engine.
func scanUserRecords(ctx context.Context, client rowstore.Client, retry *Retryer, userKey string) ([]Record, error) {
	var rows []rowstore.Row
	err := retry.Do(ctx, "scan logs", func(ctx context.Context) error {
		var scanErr error
		rows, scanErr = client.ScanAll(ctx, rowstore.TableLogs)
		return scanErr
	})
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(strings.TrimSpace(userKey))
	var records []Record
	for _, row := range rows {
		rec, ok := parseRecord(row)
		if !ok {
			continue
		}
		if strings.ToLower(strings.TrimSpace(rec.UserKey)) == want {
			records = append(records, rec)
		}
	}
	return records, nil
}
