package main

import (
	"crypto/rand"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	_ "modernc.org/sqlite"

	web "programdesk/internal/adapters/http"
	"programdesk/internal/adapters/http/perf"
	"programdesk/internal/adapters/storage"
	attendanceStore "programdesk/internal/adapters/storage/attendance"
	auditStore "programdesk/internal/adapters/storage/audit"
	enrollmentStore "programdesk/internal/adapters/storage/enrollment"
	programStore "programdesk/internal/adapters/storage/program"
	sessionMetaStore "programdesk/internal/adapters/storage/sessionmeta"
	"programdesk/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// WAL mode, foreign keys and busy timeout on every connection
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQueryMs)

	stores := &web.Stores{
		ProgramStore:     programStore.NewSQLiteStore(timedDB),
		EnrollmentStore:  enrollmentStore.NewSQLiteStore(timedDB),
		SessionMetaStore: sessionMetaStore.NewSQLiteStore(timedDB),
		AttendanceStore:  attendanceStore.NewSQLiteStore(timedDB),
		AuditStore:       auditStore.NewSQLiteStore(timedDB),
	}

	csrfKey := cfg.CSRFKey
	if csrfKey == nil {
		// Development only: config.Load refuses to start production without a key
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			log.Fatalf("failed to generate csrf key: %v", err)
		}
		slog.Warn("csrf_key_generated", "env", cfg.Env, "hint", "set "+config.EnvCSRFKey+" to keep tokens valid across restarts")
	}

	mux := web.NewMux(stores, web.Options{
		Checker:       cfg.Capabilities,
		Policy:        cfg.Policy,
		CSRFKey:       csrfKey,
		SecureCookies: cfg.IsProduction(),
		SlowRequestMs: cfg.SlowRequestMs,
	}, collector)

	slog.Info("server_starting",
		"version", version,
		"addr", cfg.Addr,
		"env", cfg.Env,
		"schema", storage.LatestSchemaVersion(),
		"lookback_days", cfg.Policy.LookbackDays,
		"lead_time", cfg.Policy.LeadTime.String(),
	)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
