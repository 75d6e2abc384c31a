/*
errors.go - Centralized error taxonomy for the attendance engine

PURPOSE:
  Every failure a caller can branch on lives here. The taxonomy:

    ValidationError   bad input, surfaced before any store access
    ConflictError     a duplicate or mutually-exclusive record exists
    ErrInFlight       identical submission racing in this process
    PermissionError   administrator action by a non-administrator
    transient faults  classified by rowstore.IsTransient, absorbed by retry
    schema faults     classified by rowstore.IsSchema, never retried

USAGE:
  if errors.Is(err, ledger.ErrConflict) { ... show reason, do not retry }
  if ledger.IsClientError(err) { ... 4xx, the store was never the problem }

SEE ALSO:
  - rowstore: transient/schema classification for store faults
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/warp/attendance-engine/rowstore"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConflict is the root of every duplicate / mutual-exclusion rejection.
	ErrConflict = errors.New("conflicting record exists")

	// ErrInFlight is returned when an identical (user, kind, date) submission
	// is already being written by this process. Callers should tell the user
	// to try again shortly, not retry automatically.
	ErrInFlight = errors.New("identical submission already in progress")

	// ErrPermission is returned before any store access when a caller
	// attempts an administrator action without the administrator role.
	ErrPermission = errors.New("administrator permission required")

	// ErrOverdraw is returned when a leave span would exceed the member's
	// effective remaining balance. Nothing is written.
	ErrOverdraw = errors.New("insufficient leave balance")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports malformed or missing input. Raised before any
// store access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError carries the detector's human-readable reason.
type ConflictError struct {
	UserKey string
	Kind    ActionKind
	Date    Date
	Reason  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s on %s: %s", e.UserKey, e.Kind, e.Date, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// OverdrawError reports a span that would exceed the effective balance.
type OverdrawError struct {
	UserKey   string
	Requested string // days requested, as a decimal string
	Available string // days available, as a decimal string
}

func (e *OverdrawError) Error() string {
	return fmt.Sprintf("%s: requested %s days, %s available", e.UserKey, e.Requested, e.Available)
}

func (e *OverdrawError) Unwrap() error { return ErrOverdraw }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the failure is the caller's fault: the
// store was never touched, or was touched and refused for a business
// reason. These map to 4xx at the API layer.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInFlight) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrOverdraw)
}

// IsTransient reports whether the failure came from a transient store
// fault that exhausted its retry budget.
func IsTransient(err error) bool { return rowstore.IsTransient(err) }

// IsSchema reports whether the failure is a store configuration problem
// (missing table or column). Surfaced as such, never retried.
func IsSchema(err error) bool { return rowstore.IsSchema(err) }
