package web

import (
	"net/http"
	"time"

	"programdesk/internal/adapters/http/middleware"
	"programdesk/internal/adapters/http/perf"
	attendanceStore "programdesk/internal/adapters/storage/attendance"
	auditStore "programdesk/internal/adapters/storage/audit"
	enrollmentStore "programdesk/internal/adapters/storage/enrollment"
	programStore "programdesk/internal/adapters/storage/program"
	sessionMetaStore "programdesk/internal/adapters/storage/sessionmeta"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/session"
)

// Stores holds all storage dependencies.
type Stores struct {
	ProgramStore     programStore.Store
	EnrollmentStore  enrollmentStore.Store
	SessionMetaStore sessionMetaStore.Store
	AttendanceStore  attendanceStore.Store
	AuditStore       auditStore.Store
}

// Options carries the non-store settings of the HTTP adapter.
type Options struct {
	Checker            capability.Checker
	Policy             session.Policy
	CSRFKey            []byte // 32 bytes
	SecureCookies      bool
	TrustedOrigins     []string
	SlowRequestMs      int
	RateLimitPerSecond int // 0 selects DefaultRateLimitPerSecond
	Now                func() time.Time
}

// DefaultRateLimitPerSecond is the per-IP request budget.
const DefaultRateLimitPerSecond = 20

// server binds handlers to their dependencies.
type server struct {
	stores    *Stores
	opts      Options
	collector *perf.Collector
}

// NewMux wires HTTP handlers for the app.
// PRE: s has every store set; opts.Checker is non-nil
func NewMux(s *Stores, opts Options, collector *perf.Collector) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = DefaultRateLimitPerSecond
	}
	srv := &server{stores: s, opts: opts, collector: collector}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	limiter := middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second)

	// Request order: SecurityHeaders -> Identity -> RateLimit -> CSRF -> Timing -> Mux
	return middleware.Chain(mux,
		middleware.Timing(collector, opts.SlowRequestMs),
		middleware.CSRF(opts.CSRFKey, opts.SecureCookies, opts.TrustedOrigins...),
		middleware.RateLimit(limiter),
		middleware.Identity,
		middleware.SecurityHeaders,
	)
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/perf", s.handlePerf)

	mux.HandleFunc("GET /api/programs", s.handleListPrograms)
	mux.HandleFunc("GET /api/programs/{id}/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/programs/{id}/sessions/{date}", s.handleDayOverview)
	mux.HandleFunc("POST /api/programs/{id}/sessions/{date}/attendance", s.handleRecordAttendance)
	mux.HandleFunc("POST /api/programs/{id}/sessions/{date}/times", s.handleAdjustTimes)
	mux.HandleFunc("POST /api/programs/{id}/sessions/{date}/cancel", s.handleTransition(capability.UpdateSessionMetadata, transitionCancel))
	mux.HandleFunc("POST /api/programs/{id}/sessions/{date}/reactivate", s.handleTransition(capability.UpdateSessionMetadata, transitionReactivate))
	mux.HandleFunc("POST /api/programs/{id}/sessions/{date}/complete", s.handleTransition(capability.MarkDayCompleted, transitionComplete))
	mux.HandleFunc("POST /api/programs/{id}/sessions/{date}/reopen", s.handleTransition(capability.ReopenCompletedDay, transitionReopen))
	mux.HandleFunc("POST /api/programs/{id}/end-date", s.handleExtendEndDate)
	mux.HandleFunc("GET /api/programs/{id}/audit", s.handleAuditTrail)
}
