/*
dto.go - Request and response types for the HTTP surface

PURPOSE:
  JSON shapes for the thin API in front of the engine. Callers arrive
  with already-validated primitive values (user key, kind, date, note);
  identity resolution and any interactive rendering happen upstream of
  this service and are not its concern.

VALIDATION:
  Struct tags drive go-playground/validator; date formats and action
  kinds are checked again by the engine, which owns those rules.
*/
package api

// AttendanceRequest submits one single-day record.
type AttendanceRequest struct {
	UserKey     string `json:"user_key" validate:"required"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind" validate:"required"`
	Date        string `json:"date"` // YYYY-MM-DD; empty means today
	Note        string `json:"note"`
	Half        string `json:"half" validate:"omitempty,oneof=am pm"`
}

// SpanRequest submits a ranged leave request, inclusive on both ends.
type SpanRequest struct {
	UserKey     string `json:"user_key" validate:"required"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind" validate:"required"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	Note        string `json:"note"`
	Half        string `json:"half" validate:"omitempty,oneof=am pm"`
}

// AdminAttendanceRequest writes a record on behalf of a member.
type AdminAttendanceRequest struct {
	AdminKey    string `json:"admin_key" validate:"required"`
	TargetKey   string `json:"target_key" validate:"required"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind" validate:"required"`
	Date        string `json:"date"`
	Note        string `json:"note"`
	Half        string `json:"half" validate:"omitempty,oneof=am pm"`

	// IncludeNonBusinessDays lets administrator entries land on weekends
	// and holidays.
	IncludeNonBusinessDays bool `json:"include_non_business_days"`
}

// OverrideRequest sets an administrator baseline override.
type OverrideRequest struct {
	AdminKey     string `json:"admin_key" validate:"required"`
	TargetKey    string `json:"target_key" validate:"required"`
	DisplayName  string `json:"display_name"`
	OverrideLeft string `json:"override_left" validate:"required"`
	OverrideFrom string `json:"override_from"` // empty counts all history
}

// PrecheckResultDTO answers an early conflict probe. OK means the
// submission looked clear at probe time; the guarded write re-checks.
type PrecheckResultDTO struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// WriteResultDTO acknowledges a successful single write.
type WriteResultDTO struct {
	Status string `json:"status"` // always "ok"
	Date   string `json:"date"`
	Kind   string `json:"kind"`
}

// SpanReportDTO is the per-day batch outcome shown to the submitter.
type SpanReportDTO struct {
	BatchID string       `json:"batch_id"`
	Saved   []string     `json:"saved"`
	Skipped []SkippedDTO `json:"skipped"`
	Failed  []SkippedDTO `json:"failed"`
}

type SkippedDTO struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// BalanceDTO is a balance snapshot.
type BalanceDTO struct {
	UserKey     string `json:"user_key"`
	DisplayName string `json:"display_name,omitempty"`
	AnnualTotal string `json:"annual_total"`
	AnnualUsed  string `json:"annual_used"`
	HalfUsed    string `json:"half_used"`
	AnnualLeft  string `json:"annual_left"`
	Basis       string `json:"basis"`
}

// ErrorDTO carries the structured error kind plus a human message.
type ErrorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type HolidaysDTO struct {
	Holidays []string `json:"holidays"`
}
