/*
span.go - Multi-day leave resolution and two-phase commit

PURPOSE:
  Expands a start/end date range into per-day outcomes. Resolution
  partitions the range into savable dates and skipped dates with
  reasons; commit checks the effective balance first (annual only),
  then drives one guarded append per savable date, tolerating
  individual-day failures without aborting the batch.

WHY TWO PHASES?
  A balance check must precede any writes, or a member could be granted
  half of an overdrawing request. Resolving first also lets the caller
  show exactly what will happen before anything is committed.
*/
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/rowstore"
)

// =============================================================================
// PLAN AND REPORT TYPES
// =============================================================================

// SkippedDate is a date excluded during resolution, with the reason shown
// to the submitter.
type SkippedDate struct {
	Date   Date
	Reason string
}

// SpanPlan partitions an inclusive range into writable and skipped dates.
type SpanPlan struct {
	Savable []Date
	Skipped []SkippedDate
}

// SpanReport aggregates per-day commit outcomes for the submitter.
type SpanReport struct {
	BatchID string
	Saved   []Date
	Skipped []SkippedDate
	Failed  []SkippedDate
}

// =============================================================================
// SPAN RESOLVER
// =============================================================================

// SpanResolver expands ranged leave submissions and commits them through
// the ledger writer.
type SpanResolver struct {
	client   rowstore.Client
	retry    *Retryer
	calendar *Calendar
	writer   *Writer
	balances *BalanceEngine
	log      *zap.Logger
}

func NewSpanResolver(client rowstore.Client, retry *Retryer, calendar *Calendar, writer *Writer, balances *BalanceEngine, log *zap.Logger) *SpanResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &SpanResolver{
		client:   client,
		retry:    retry,
		calendar: calendar,
		writer:   writer,
		balances: balances,
		log:      log,
	}
}

// Resolve walks [start, end] inclusive and decides per day: save, or skip
// with a reason. An inverted range yields an empty plan, not an error;
// callers are expected to have rejected it as validation already.
//
// Annual leave skips non-business days unless the policy includes them;
// other kinds iterate plain calendar days.
func (s *SpanResolver) Resolve(ctx context.Context, userKey string, kind ActionKind, half HalfPeriod, start, end Date, pol WritePolicy) (SpanPlan, error) {
	var plan SpanPlan
	if start.After(end) {
		return plan, nil
	}

	// One scan serves conflict checks for every date in the range.
	records, err := scanUserRecords(ctx, s.client, s.retry, userKey)
	if err != nil {
		return plan, err
	}

	for d := start; !d.After(end); d = d.Next() {
		if kind == KindAnnual && !pol.IncludeNonBusinessDays {
			business, err := s.calendar.IsBusinessDay(ctx, d)
			if err != nil {
				return SpanPlan{}, err
			}
			if !business {
				plan.Skipped = append(plan.Skipped, SkippedDate{Date: d, Reason: "not a business day"})
				continue
			}
		}
		if reason := conflictReason(records, kind, d, half); reason != "" {
			plan.Skipped = append(plan.Skipped, SkippedDate{Date: d, Reason: reason})
			continue
		}
		plan.Savable = append(plan.Savable, d)
	}
	return plan, nil
}

// Commit writes every savable date of a resolved plan. For annual leave
// it first recomputes the member's balance and refuses the whole batch
// with ErrOverdraw if the plan would exceed what is left. Individual-day
// write failures are reported, not fatal to the rest of the batch.
func (s *SpanResolver) Commit(ctx context.Context, sub Submission, plan SpanPlan, pol WritePolicy) (SpanReport, error) {
	report := SpanReport{
		BatchID: uuid.NewString(),
		Skipped: plan.Skipped,
	}

	if sub.Kind == KindAnnual && len(plan.Savable) > 0 {
		snapshot, err := s.balances.Recompute(ctx, sub.UserKey, sub.DisplayName)
		if err != nil {
			return report, err
		}
		requested := decimal.NewFromInt(int64(len(plan.Savable)))
		if requested.GreaterThan(snapshot.AnnualLeft) {
			return report, &OverdrawError{
				UserKey:   sub.UserKey,
				Requested: requested.String(),
				Available: snapshot.AnnualLeft.String(),
			}
		}
	}

	for _, d := range plan.Savable {
		day := sub
		day.Date = d
		if err := s.writer.GuardedAppend(ctx, day, pol); err != nil {
			report.Failed = append(report.Failed, SkippedDate{Date: d, Reason: err.Error()})
			continue
		}
		report.Saved = append(report.Saved, d)
	}

	s.log.Info("span committed",
		zap.String("batch", report.BatchID),
		zap.String("user", sub.UserKey),
		zap.String("kind", string(sub.Kind)),
		zap.Int("saved", len(report.Saved)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
