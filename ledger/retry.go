/*
retry.go - Bounded exponential backoff for row-store operations

PURPOSE:
  The backing store is slow and occasionally failing. Every store round
  trip in this package goes through the Retryer, which retries transient
  faults with exponential backoff plus jitter and surfaces everything
  else unchanged.

WHAT IS RETRIED:
  Only faults rowstore.IsTransient classifies as such (unavailable,
  rate limited). Conflicts, validation faults, and schema faults pass
  straight through: retrying them cannot help and retrying an append
  that already landed would duplicate it.

AT-LEAST-ONCE:
  The store offers at-least-once append semantics under retry. The
  engine relies on idempotency keys and write-time conflict re-checks
  for correctness, not on exactly-once store behavior.
*/
package ledger

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/rowstore"
)

// Retryer executes store operations with bounded exponential backoff.
type Retryer struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	log *zap.Logger
}

// NewRetryer returns a Retryer with the given bounds. Zero values fall
// back to 4 attempts, 200ms base, 3s cap.
func NewRetryer(maxAttempts int, base, max time.Duration, log *zap.Logger) *Retryer {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if max <= 0 {
		max = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retryer{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: max, log: log}
}

// Do runs op, retrying transient faults up to MaxAttempts total tries.
// The last error is returned unchanged on exhaustion.
func (r *Retryer) Do(ctx context.Context, opName string, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !rowstore.IsTransient(err) {
			return err
		}
		if attempt == r.MaxAttempts {
			break
		}
		delay := r.backoff(attempt)
		r.log.Warn("store operation failed, backing off",
			zap.String("op", opName),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.log.Error("store operation exhausted retries",
		zap.String("op", opName),
		zap.Int("attempts", r.MaxAttempts),
		zap.Error(err))
	return err
}

// backoff returns base * 2^(attempt-1), capped, with up to 50% jitter
// added so colliding retriers spread out.
func (r *Retryer) backoff(attempt int) time.Duration {
	delay := r.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.MaxDelay {
			delay = r.MaxDelay
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	delay += jitter
	if delay > r.MaxDelay {
		delay = r.MaxDelay
	}
	return delay
}
