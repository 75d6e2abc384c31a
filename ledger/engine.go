/*
engine.go - Component wiring and the operations callers invoke

PURPOSE:
  Assembles the retryer, calendar, detector, writer, span resolver,
  balance engine, and audit log into one Engine and exposes the
  operations the surrounding surface calls: single-day submission,
  ranged submission, balance inquiry, administrator entry and override.

  Administrator operations audit every attempt, success or failure,
  before returning. Self-service leave writes opportunistically
  recompute the member's balance; that recomputation is best-effort
  and its failure does not fail the write.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/rowstore"
)

// Options bounds the engine's retry behavior and seeds new balance rows.
type Options struct {
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	DefaultAnnualTotal decimal.Decimal
}

// Engine is the attendance ledger and balance-reconciliation engine.
type Engine struct {
	Calendar *Calendar
	Detector *Detector
	Writer   *Writer
	Spans    *SpanResolver
	Balances *BalanceEngine
	Audit    *AuditLog

	clock Clock
	log   *zap.Logger
}

func NewEngine(client rowstore.Client, clock Clock, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DefaultAnnualTotal.IsZero() {
		opts.DefaultAnnualTotal = decimal.NewFromInt(15)
	}
	retry := NewRetryer(opts.RetryAttempts, opts.RetryBaseDelay, opts.RetryMaxDelay, log)
	calendar := NewCalendar(client, retry)
	detector := NewDetector(client, retry)
	writer := NewWriter(client, detector, retry, clock, log)
	balances := NewBalanceEngine(client, retry, calendar, clock, opts.DefaultAnnualTotal, log)
	spans := NewSpanResolver(client, retry, calendar, writer, balances, log)
	audit := NewAuditLog(client, retry, clock, log)

	return &Engine{
		Calendar: calendar,
		Detector: detector,
		Writer:   writer,
		Spans:    spans,
		Balances: balances,
		Audit:    audit,
		clock:    clock,
		log:      log,
	}
}

// Clock returns the engine's ledger clock.
func (e *Engine) Clock() Clock { return e.clock }

// Precheck gives early validation feedback without touching the guarded
// write path. The writer re-checks at commit time regardless.
func (e *Engine) Precheck(ctx context.Context, sub Submission) (string, error) {
	date := sub.Date
	if date.IsZero() {
		date = e.clock.Today()
	}
	return e.Detector.CheckConflict(ctx, sub.UserKey, sub.Kind, date, sub.Half)
}

// Submit writes one self-service record and opportunistically recomputes
// the member's balance for leave kinds.
func (e *Engine) Submit(ctx context.Context, sub Submission, pol WritePolicy) error {
	if err := e.Writer.GuardedAppend(ctx, sub, pol); err != nil {
		return err
	}
	if sub.Kind.IsLeave() {
		if _, err := e.Balances.Recompute(ctx, sub.UserKey, sub.DisplayName); err != nil {
			e.log.Warn("post-write balance recompute failed",
				zap.String("user", sub.UserKey), zap.Error(err))
		}
	}
	return nil
}

// SubmitSpan resolves and commits a ranged leave submission.
func (e *Engine) SubmitSpan(ctx context.Context, sub Submission, start, end Date, pol WritePolicy) (SpanReport, error) {
	plan, err := e.Spans.Resolve(ctx, sub.UserKey, sub.Kind, sub.Half, start, end, pol)
	if err != nil {
		return SpanReport{}, err
	}
	report, err := e.Spans.Commit(ctx, sub, plan, pol)
	if err != nil {
		return report, err
	}
	if sub.Kind.IsLeave() && len(report.Saved) > 0 {
		if _, rErr := e.Balances.Recompute(ctx, sub.UserKey, sub.DisplayName); rErr != nil {
			e.log.Warn("post-span balance recompute failed",
				zap.String("user", sub.UserKey), zap.Error(rErr))
		}
	}
	return report, nil
}

// AdminSubmit writes one record on behalf of a member and audits the
// attempt either way.
func (e *Engine) AdminSubmit(ctx context.Context, adminKey string, sub Submission, pol WritePolicy) error {
	sub.Source = SourceAdmin
	sub.RecordedBy = adminKey

	err := e.Writer.GuardedAppend(ctx, sub, pol)
	date := sub.Date
	if date.IsZero() {
		date = e.clock.Today()
	}
	if err != nil {
		e.Audit.Record(ctx, adminKey, sub.UserKey, sub.Kind, date, sub.Note, AuditFail, err)
		return err
	}
	e.Audit.Record(ctx, adminKey, sub.UserKey, sub.Kind, date, sub.Note, AuditOK, nil)

	if sub.Kind.IsLeave() {
		if _, rErr := e.Balances.Recompute(ctx, sub.UserKey, sub.DisplayName); rErr != nil {
			e.log.Warn("post-write balance recompute failed",
				zap.String("user", sub.UserKey), zap.Error(rErr))
		}
	}
	return nil
}

// Balance recomputes and returns the member's current snapshot.
func (e *Engine) Balance(ctx context.Context, userKey, displayName string) (BalanceSnapshot, error) {
	return e.Balances.Recompute(ctx, userKey, displayName)
}

// SetOverride records an administrator baseline override, audits the
// attempt, and returns the recomputed snapshot.
func (e *Engine) SetOverride(ctx context.Context, adminKey, targetKey, displayName string, left decimal.Decimal, from *Date) (BalanceSnapshot, error) {
	snapshot, err := e.Balances.SetOverride(ctx, targetKey, displayName, left, from)
	auditDate := e.clock.Today()
	if from != nil {
		auditDate = *from
	}
	note := "override_left=" + left.String()
	if err != nil {
		e.Audit.Record(ctx, adminKey, targetKey, KindAnnual, auditDate, note, AuditFail, err)
		return snapshot, err
	}
	e.Audit.Record(ctx, adminKey, targetKey, KindAnnual, auditDate, note, AuditOK, nil)
	return snapshot, nil
}
