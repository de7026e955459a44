package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"programdesk/internal/adapters/http/middleware"
	auditStore "programdesk/internal/adapters/storage/audit"
	"programdesk/internal/application/orchestrators"
	"programdesk/internal/application/projections"
	"programdesk/internal/domain/attendance"
	auditDomain "programdesk/internal/domain/audit"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/program"
	"programdesk/internal/domain/session"
)

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMapping maps a domain sentinel to its HTTP status and stable code.
type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{session.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{session.ErrDateOutOfRange, http.StatusNotFound, "date_out_of_range"},
	{program.ErrNotFound, http.StatusNotFound, "program_not_found"},
	{session.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
	{session.ErrInvalidTime, http.StatusBadRequest, "invalid_time"},
	{session.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
	{attendance.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{attendance.ErrEmptyTraineeID, http.StatusBadRequest, "invalid_trainee"},
	{attendance.ErrRemarksTooLong, http.StatusBadRequest, "remarks_too_long"},
	{program.ErrEmptyEndDate, http.StatusBadRequest, "invalid_range"},
	{session.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{session.ErrSessionLocked, http.StatusConflict, "session_locked"},
	{session.ErrOutsideRecordingWindow, http.StatusConflict, "outside_recording_window"},
	{attendance.ErrNotEnrolled, http.StatusConflict, "not_enrolled"},
	{session.ErrVersionConflict, http.StatusConflict, "version_conflict"},
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err.Error())
	}
}

// writeError maps err to a status. Unmapped errors are logged and reported
// as a generic 500 so internals are not leaked.
func writeError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorResponse{Error: m.code, Message: err.Error()})
			return
		}
	}
	internalError(w, err)
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal server error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: msg})
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// actor returns the caller identity set by middleware.Identity.
func actor(r *http.Request) middleware.Actor {
	a, _ := middleware.GetActorFromContext(r.Context())
	return a
}

// require writes 403 unless the caller's role holds c. Mutating handlers call
// it before parsing the path or body, so a caller without the capability
// learns nothing from validation errors.
func (s *server) require(w http.ResponseWriter, r *http.Request, c capability.Capability) bool {
	role := actor(r).Role
	if s.opts.Checker != nil && s.opts.Checker.Allowed(role, c) {
		return true
	}
	writeError(w, fmt.Errorf("%w: role %q lacks %s", session.ErrPermissionDenied, role, c))
	return false
}

// pathDate parses the {date} path segment.
func pathDate(w http.ResponseWriter, r *http.Request) (session.Date, bool) {
	d, err := session.ParseDate(r.PathValue("date"))
	if err != nil {
		badRequest(w, err.Error())
		return session.Date{}, false
	}
	return d, true
}

func (s *server) sessionDeps() projections.SessionDeps {
	return projections.SessionDeps{
		ProgramStore:    s.stores.ProgramStore,
		MetaStore:       s.stores.SessionMetaStore,
		AttendanceStore: s.stores.AttendanceStore,
		RosterStore:     s.stores.EnrollmentStore,
		AuditStore:      s.stores.AuditStore,
		Policy:          s.opts.Policy,
		Now:             s.opts.Now,
	}
}

func (s *server) dayDeps() orchestrators.SessionDayDeps {
	return orchestrators.SessionDayDeps{
		Checker:      s.opts.Checker,
		ProgramStore: s.stores.ProgramStore,
		MetaStore:    s.stores.SessionMetaStore,
		AuditStore:   s.stores.AuditStore,
		Now:          s.opts.Now,
	}
}

// handleHealth reports liveness (GET /healthz).
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePerf returns the request and query timing snapshot (GET /api/perf).
// PRE: caller is an admin
func (s *server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if actor(r).Role != capability.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "permission_denied", Message: "admin only"})
		return
	}
	if s.collector == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	window := time.Hour
	if v := r.URL.Query().Get("minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 24*60 {
			window = time.Duration(n) * time.Minute
		}
	}
	writeJSON(w, http.StatusOK, s.collector.Snapshot(s.opts.Now().Add(-window), 10))
}

type programSummary struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	StartDate        session.Date `json:"start_date"`
	EndDate          session.Date `json:"end_date"`
	DefaultStartTime string       `json:"default_start_time"`
	DefaultEndTime   string       `json:"default_end_time"`
	Days             int          `json:"days"`
}

// handleListPrograms lists every program with its day count (GET /api/programs).
func (s *server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.stores.ProgramStore.List(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]programSummary, 0, len(programs))
	for _, p := range programs {
		out = append(out, programSummary{
			ID:               p.ID,
			Name:             p.Name,
			StartDate:        p.StartDate,
			EndDate:          p.EndDate,
			DefaultStartTime: p.DefaultStartTime,
			DefaultEndTime:   p.DefaultEndTime,
			Days:             p.EndDate.DaysSince(p.StartDate) + 1,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListSessions enumerates a program's days (GET /api/programs/{id}/sessions).
// Optional ?from=YYYY-MM-DD&to=YYYY-MM-DD narrow the span.
func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := projections.ListSessionsQuery{ProgramID: r.PathValue("id")}
	for param, dst := range map[string]*session.Date{"from": &q.From, "to": &q.To} {
		if v := r.URL.Query().Get(param); v != "" {
			d, err := session.ParseDate(v)
			if err != nil {
				badRequest(w, param+": "+err.Error())
				return
			}
			*dst = d
		}
	}
	result, err := projections.QueryListSessions(r.Context(), q, s.sessionDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDayOverview returns one day's meta, summary and roster (GET /api/programs/{id}/sessions/{date}).
func (s *server) handleDayOverview(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	result, err := projections.QueryGetDayOverview(r.Context(), projections.DayOverviewQuery{ProgramID: r.PathValue("id"), Date: date}, s.sessionDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type recordAttendanceRequest struct {
	TraineeID string `json:"trainee_id"`
	Status    string `json:"status"`
	Remarks   string `json:"remarks"`
}

// handleRecordAttendance marks one trainee (POST /api/programs/{id}/sessions/{date}/attendance).
func (s *server) handleRecordAttendance(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, r, capability.RecordAttendance) {
		return
	}
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	var req recordAttendanceRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	a := actor(r)
	rec, err := orchestrators.ExecuteRecordAttendance(r.Context(), orchestrators.RecordAttendanceInput{
		ProgramID: r.PathValue("id"),
		Date:      date,
		TraineeID: req.TraineeID,
		Status:    req.Status,
		Remarks:   req.Remarks,
		ActorID:   a.ID,
		ActorRole: a.Role,
	}, orchestrators.RecordAttendanceDeps{
		Checker:         s.opts.Checker,
		ProgramStore:    s.stores.ProgramStore,
		MetaStore:       s.stores.SessionMetaStore,
		AttendanceStore: s.stores.AttendanceStore,
		EnrollmentStore: s.stores.EnrollmentStore,
		AuditStore:      s.stores.AuditStore,
		Policy:          s.opts.Policy,
		Now:             s.opts.Now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type adjustTimesRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Version   *int   `json:"version"`
}

// handleAdjustTimes overrides one day's times (POST /api/programs/{id}/sessions/{date}/times).
func (s *server) handleAdjustTimes(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, r, capability.UpdateSessionMetadata) {
		return
	}
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	var req adjustTimesRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	a := actor(r)
	meta, err := orchestrators.ExecuteAdjustTimes(r.Context(), orchestrators.AdjustTimesInput{
		SessionDayInput: orchestrators.SessionDayInput{
			ProgramID: r.PathValue("id"), Date: date,
			ActorID: a.ID, ActorRole: a.Role, ExpectedVersion: req.Version,
		},
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, s.dayDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// dayTransition names one of the reason-carrying lifecycle endpoints.
type dayTransition func(r *http.Request, in orchestrators.SessionDayInput, deps orchestrators.SessionDayDeps) (session.Meta, error)

func transitionCancel(r *http.Request, in orchestrators.SessionDayInput, deps orchestrators.SessionDayDeps) (session.Meta, error) {
	return orchestrators.ExecuteCancelDay(r.Context(), in, deps)
}

func transitionReactivate(r *http.Request, in orchestrators.SessionDayInput, deps orchestrators.SessionDayDeps) (session.Meta, error) {
	return orchestrators.ExecuteReactivateDay(r.Context(), in, deps)
}

func transitionComplete(r *http.Request, in orchestrators.SessionDayInput, deps orchestrators.SessionDayDeps) (session.Meta, error) {
	return orchestrators.ExecuteMarkCompleted(r.Context(), in, deps)
}

func transitionReopen(r *http.Request, in orchestrators.SessionDayInput, deps orchestrators.SessionDayDeps) (session.Meta, error) {
	return orchestrators.ExecuteReopenDay(r.Context(), in, deps)
}

type transitionRequest struct {
	Reason  string `json:"reason"`
	Version *int   `json:"version"`
}

// handleTransition serves cancel, reactivate, complete and reopen; c is the
// capability run checks, repeated here ahead of request parsing.
// An empty body is accepted for the transitions that need no reason.
func (s *server) handleTransition(c capability.Capability, run dayTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.require(w, r, c) {
			return
		}
		date, ok := pathDate(w, r)
		if !ok {
			return
		}
		var req transitionRequest
		if err := strictDecode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, "invalid request body")
			return
		}
		a := actor(r)
		meta, err := run(r, orchestrators.SessionDayInput{
			ProgramID: r.PathValue("id"), Date: date, Reason: req.Reason,
			ActorID: a.ID, ActorRole: a.Role, ExpectedVersion: req.Version,
		}, s.dayDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	}
}

type extendEndDateRequest struct {
	EndDate string `json:"end_date"`
	Reason  string `json:"reason"`
}

type extendEndDateResponse struct {
	ProgramID string        `json:"program_id"`
	StartDate session.Date  `json:"start_date"`
	EndDate   session.Date  `json:"end_date"`
	AddedKeys []session.Key `json:"added_keys"`
}

// handleExtendEndDate moves a program's end date later (POST /api/programs/{id}/end-date).
func (s *server) handleExtendEndDate(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, r, capability.UpdateProgramEndDate) {
		return
	}
	var req extendEndDateRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	newEnd, err := session.ParseDate(req.EndDate)
	if err != nil {
		badRequest(w, "end_date: "+err.Error())
		return
	}
	a := actor(r)
	res, err := orchestrators.ExecuteExtendProgramEndDate(r.Context(), orchestrators.ExtendProgramEndDateInput{
		ProgramID:  r.PathValue("id"),
		NewEndDate: newEnd,
		Reason:     req.Reason,
		ActorID:    a.ID,
		ActorRole:  a.Role,
	}, orchestrators.ExtendProgramEndDateDeps{
		Checker:      s.opts.Checker,
		ProgramStore: s.stores.ProgramStore,
		AuditStore:   s.stores.AuditStore,
		Now:          s.opts.Now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extendEndDateResponse{
		ProgramID: res.Program.ID,
		StartDate: res.Program.StartDate,
		EndDate:   res.Program.EndDate,
		AddedKeys: res.AddedKeys,
	})
}

// handleAuditTrail lists a program's audit events (GET /api/programs/{id}/audit).
// PRE: caller is an admin
func (s *server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	if actor(r).Role != capability.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "permission_denied", Message: "admin only"})
		return
	}
	q := r.URL.Query()
	filter := auditStore.Filter{
		ProgramID:  r.PathValue("id"),
		Category:   auditDomain.Category(q.Get("category")),
		Action:     auditDomain.Action(q.Get("action")),
		ActorID:    q.Get("actor_id"),
		ResourceID: q.Get("resource_id"),
	}

	// Parse limit, default to 100
	limit := 100
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}

	events, err := s.stores.AuditStore.List(r.Context(), filter, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	if events == nil {
		events = []auditDomain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
