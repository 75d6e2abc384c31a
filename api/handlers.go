/*
handlers.go - HTTP handlers in front of the attendance engine

PURPOSE:
  Decodes JSON, validates shape, delegates to the engine, and maps the
  engine's error taxonomy onto HTTP statuses:

    400  validation (bad input, store never touched)
    403  permission (administrator action without the role)
    409  conflict / identical submission in flight / overdraw
    500  schema fault (store misconfigured)
    503  transient store fault that exhausted its retry budget

ENDPOINTS:
  POST /api/attendance              single-day self-service record
  POST /api/attendance/precheck     advisory conflict probe
  POST /api/attendance/span         ranged leave request
  GET  /api/members/{key}/balance   balance inquiry (recomputes)
  POST /api/admin/attendance        administrator entry (single or span)
  POST /api/admin/override          administrator baseline override
  GET  /api/holidays                cached holiday set
  POST /api/holidays/refresh        reload the holiday cache

SEE ALSO:
  - dto.go:    request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/ledger"
)

// Handler holds the engine and request plumbing.
type Handler struct {
	Engine   *ledger.Engine
	Log      *zap.Logger
	validate *validator.Validate
	admins   map[string]bool
}

// NewHandler wires a handler. adminKeys lists the user keys granted the
// administrator role.
func NewHandler(engine *ledger.Engine, adminKeys []string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	admins := make(map[string]bool, len(adminKeys))
	for _, k := range adminKeys {
		admins[k] = true
	}
	return &Handler{
		Engine:   engine,
		Log:      log,
		validate: validator.New(),
		admins:   admins,
	}
}

// =============================================================================
// SELF-SERVICE
// =============================================================================

func (h *Handler) SubmitAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, ok := h.submission(w, req.UserKey, req.DisplayName, req.Kind, req.Date, req.Note, req.Half)
	if !ok {
		return
	}
	if err := h.Engine.Submit(r.Context(), sub, ledger.PolicyFor(ledger.RoleMember)); err != nil {
		h.writeError(w, err)
		return
	}
	date := sub.Date
	if date.IsZero() {
		date = h.Engine.Clock().Today()
	}
	h.writeJSON(w, http.StatusCreated, WriteResultDTO{Status: "ok", Date: date.String(), Kind: string(sub.Kind)})
}

// PrecheckAttendance gives the pre-acknowledgment conflict feedback a
// form-rendering caller shows before the user confirms. Advisory only;
// the guarded write path re-checks at commit time.
func (h *Handler) PrecheckAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, ok := h.submission(w, req.UserKey, req.DisplayName, req.Kind, req.Date, req.Note, req.Half)
	if !ok {
		return
	}
	reason, err := h.Engine.Precheck(r.Context(), sub)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PrecheckResultDTO{OK: reason == "", Reason: reason})
}

func (h *Handler) SubmitSpan(w http.ResponseWriter, r *http.Request) {
	var req SpanRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, ok := h.submission(w, req.UserKey, req.DisplayName, req.Kind, "", req.Note, req.Half)
	if !ok {
		return
	}
	start, end, ok := h.span(w, req.Start, req.End)
	if !ok {
		return
	}
	report, err := h.Engine.SubmitSpan(r.Context(), sub, start, end, ledger.PolicyFor(ledger.RoleMember))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, spanReportDTO(report))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "key")
	snapshot, err := h.Engine.Balance(r.Context(), userKey, "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceDTO(snapshot))
}

// =============================================================================
// ADMINISTRATOR
// =============================================================================

func (h *Handler) AdminAttendance(w http.ResponseWriter, r *http.Request) {
	var req AdminAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, req.AdminKey) {
		return
	}
	sub, ok := h.submission(w, req.TargetKey, req.DisplayName, req.Kind, req.Date, req.Note, req.Half)
	if !ok {
		return
	}
	pol := ledger.PolicyFor(ledger.RoleAdmin)
	pol.IncludeNonBusinessDays = req.IncludeNonBusinessDays
	if err := h.Engine.AdminSubmit(r.Context(), req.AdminKey, sub, pol); err != nil {
		h.writeError(w, err)
		return
	}
	date := sub.Date
	if date.IsZero() {
		date = h.Engine.Clock().Today()
	}
	h.writeJSON(w, http.StatusCreated, WriteResultDTO{Status: "ok", Date: date.String(), Kind: string(sub.Kind)})
}

func (h *Handler) AdminOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.requireAdmin(w, req.AdminKey) {
		return
	}
	left, err := decimal.NewFromString(req.OverrideLeft)
	if err != nil {
		h.writeError(w, &ledger.ValidationError{Field: "override_left", Message: "not a number"})
		return
	}
	var from *ledger.Date
	if req.OverrideFrom != "" {
		d, err := ledger.ParseDate(req.OverrideFrom)
		if err != nil {
			h.writeError(w, err)
			return
		}
		from = &d
	}
	snapshot, err := h.Engine.SetOverride(r.Context(), req.AdminKey, req.TargetKey, req.DisplayName, left, from)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceDTO(snapshot))
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (h *Handler) GetHolidays(w http.ResponseWriter, r *http.Request) {
	dates, err := h.Engine.Calendar.Holidays(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := HolidaysDTO{Holidays: make([]string, 0, len(dates))}
	for _, d := range dates {
		out.Holidays = append(out.Holidays, d.String())
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RefreshHolidays(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Calendar.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PLUMBING
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Kind: "validation", Message: "malformed JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Kind: "validation", Message: err.Error()})
		return false
	}
	return true
}

// submission converts primitives into a ledger.Submission, surfacing
// date parse failures as validation errors.
func (h *Handler) submission(w http.ResponseWriter, userKey, name, kind, date, note, half string) (ledger.Submission, bool) {
	sub := ledger.Submission{
		UserKey:     userKey,
		DisplayName: name,
		Kind:        ledger.ActionKind(kind),
		Note:        note,
		Half:        ledger.HalfPeriod(half),
	}
	if date != "" {
		d, err := ledger.ParseDate(date)
		if err != nil {
			h.writeError(w, err)
			return ledger.Submission{}, false
		}
		sub.Date = d
	}
	return sub, true
}

func (h *Handler) span(w http.ResponseWriter, startRaw, endRaw string) (start, end ledger.Date, ok bool) {
	start, err := ledger.ParseDate(startRaw)
	if err != nil {
		h.writeError(w, err)
		return
	}
	end, err = ledger.ParseDate(endRaw)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if start.After(end) {
		h.writeError(w, &ledger.ValidationError{Field: "start", Message: "start is after end"})
		return
	}
	return start, end, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, adminKey string) bool {
	if !h.admins[adminKey] {
		h.writeError(w, ledger.ErrPermission)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Kind: "validation", Message: ve.Error()})
	case errors.Is(err, ledger.ErrPermission):
		h.writeJSON(w, http.StatusForbidden, ErrorDTO{Kind: "permission", Message: "administrator permission required"})
	case errors.Is(err, ledger.ErrInFlight):
		h.writeJSON(w, http.StatusConflict, ErrorDTO{Kind: "concurrency", Message: "an identical submission is in progress, try again shortly"})
	case errors.Is(err, ledger.ErrConflict):
		h.writeJSON(w, http.StatusConflict, ErrorDTO{Kind: "conflict", Message: err.Error()})
	case errors.Is(err, ledger.ErrOverdraw):
		h.writeJSON(w, http.StatusConflict, ErrorDTO{Kind: "overdraw", Message: err.Error()})
	case ledger.IsSchema(err):
		h.Log.Error("store schema fault", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, ErrorDTO{Kind: "schema", Message: "store is misconfigured, contact an administrator"})
	case ledger.IsTransient(err):
		h.Log.Warn("store unavailable after retries", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, ErrorDTO{Kind: "transient", Message: "store temporarily unavailable, try again later"})
	default:
		h.Log.Error("unhandled error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, ErrorDTO{Kind: "internal", Message: "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.Error("response encode failed", zap.Error(err))
	}
}

func spanReportDTO(report ledger.SpanReport) SpanReportDTO {
	dto := SpanReportDTO{
		BatchID: report.BatchID,
		Saved:   make([]string, 0, len(report.Saved)),
		Skipped: make([]SkippedDTO, 0, len(report.Skipped)),
		Failed:  make([]SkippedDTO, 0, len(report.Failed)),
	}
	for _, d := range report.Saved {
		dto.Saved = append(dto.Saved, d.String())
	}
	for _, s := range report.Skipped {
		dto.Skipped = append(dto.Skipped, SkippedDTO{Date: s.Date.String(), Reason: s.Reason})
	}
	for _, f := range report.Failed {
		dto.Failed = append(dto.Failed, SkippedDTO{Date: f.Date.String(), Reason: f.Reason})
	}
	return dto
}

func balanceDTO(s ledger.BalanceSnapshot) BalanceDTO {
	return BalanceDTO{
		UserKey:     s.UserKey,
		DisplayName: s.DisplayName,
		AnnualTotal: s.AnnualTotal.String(),
		AnnualUsed:  s.AnnualUsed.String(),
		HalfUsed:    s.HalfUsed.String(),
		AnnualLeft:  s.AnnualLeft.String(),
		Basis:       s.Basis,
	}
}
