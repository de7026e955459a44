package orchestrators

import (
	"context"
	"fmt"
	"time"

	"programdesk/internal/domain/attendance"
	"programdesk/internal/domain/audit"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/program"
	"programdesk/internal/domain/session"
)

// sessionNow is 10:00 on the fourth day of the test program.
var sessionNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func sessionClock() time.Time { return sessionNow }

func day(d int) session.Date { return session.NewDate(2026, 3, d) }

// testProgram runs 2026-03-01..2026-03-10, 08:00-17:00.
func testProgram() program.Program {
	return program.Program{
		ID: "p1", Name: "Spring intake",
		StartDate: day(1), EndDate: day(10),
		DefaultStartTime: "08:00", DefaultEndTime: "17:00",
	}
}

// mockProgramStore implements ProgramStoreForExtension for testing.
type mockProgramStore struct {
	programs map[string]program.Program
	reads    int
	saves    int
}

func newMockProgramStore(ps ...program.Program) *mockProgramStore {
	m := &mockProgramStore{programs: make(map[string]program.Program)}
	for _, p := range ps {
		m.programs[p.ID] = p
	}
	return m
}

// GetByID implements ProgramStoreForExtension.
func (m *mockProgramStore) GetByID(_ context.Context, id string) (program.Program, error) {
	m.reads++
	p, ok := m.programs[id]
	if !ok {
		return program.Program{}, fmt.Errorf("%w: %s", program.ErrNotFound, id)
	}
	return p, nil
}

// Save implements ProgramStoreForExtension.
func (m *mockProgramStore) Save(_ context.Context, p program.Program) error {
	m.saves++
	m.programs[p.ID] = p
	return nil
}

// mockMetaStore implements SessionMetaStoreForLifecycle with the same version rules as SQLite.
type mockMetaStore struct {
	rows  map[session.Key]session.Override
	reads int
	saves int
}

func newMockMetaStore() *mockMetaStore {
	return &mockMetaStore{rows: make(map[session.Key]session.Override)}
}

// Get implements SessionMetaStoreForLifecycle.
func (m *mockMetaStore) Get(_ context.Context, key session.Key) (session.Override, bool, error) {
	m.reads++
	o, ok := m.rows[key]
	return o, ok, nil
}

// Save implements SessionMetaStoreForLifecycle.
func (m *mockMetaStore) Save(_ context.Context, o session.Override) (session.Override, error) {
	if cur, ok := m.rows[o.Key]; (ok && cur.Version != o.Version) || (!ok && o.Version != 0) {
		return session.Override{}, session.ErrVersionConflict
	}
	m.saves++
	o.Version++
	m.rows[o.Key] = o
	return o, nil
}

type attendanceKey struct {
	key       session.Key
	traineeID string
}

// mockAttendanceStore implements AttendanceStoreForLifecycle for testing.
type mockAttendanceStore struct {
	rows   map[attendanceKey]attendance.Record
	nextID int
}

func newMockAttendanceStore() *mockAttendanceStore {
	return &mockAttendanceStore{rows: make(map[attendanceKey]attendance.Record)}
}

// Upsert implements AttendanceStoreForLifecycle.
func (m *mockAttendanceStore) Upsert(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	k := attendanceKey{rec.Key, rec.TraineeID}
	if cur, ok := m.rows[k]; ok {
		rec.ID = cur.ID
	} else {
		m.nextID++
		rec.ID = fmt.Sprintf("rec-%d", m.nextID)
	}
	m.rows[k] = rec
	return rec, nil
}

// forDay returns the stored records of one day.
func (m *mockAttendanceStore) forDay(key session.Key) []attendance.Record {
	var out []attendance.Record
	for k, r := range m.rows {
		if k.key == key {
			out = append(out, r)
		}
	}
	return out
}

// mockEnrollmentStore implements EnrollmentStoreForLifecycle for testing.
type mockEnrollmentStore struct {
	trainees map[string]bool
}

// IsEnrolled implements EnrollmentStoreForLifecycle.
func (m *mockEnrollmentStore) IsEnrolled(_ context.Context, _ string, traineeID string) (bool, error) {
	return m.trainees[traineeID], nil
}

// mockAuditStore implements AuditStoreForLifecycle for testing.
type mockAuditStore struct {
	events []audit.Event
	err    error
}

// Save implements AuditStoreForLifecycle.
func (m *mockAuditStore) Save(_ context.Context, e audit.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

// sessionFixture wires one program with every mock.
type sessionFixture struct {
	programs   *mockProgramStore
	metas      *mockMetaStore
	records    *mockAttendanceStore
	enrollment *mockEnrollmentStore
	audits     *mockAuditStore
	checker    capability.Checker
}

func newSessionFixture() *sessionFixture {
	return &sessionFixture{
		programs:   newMockProgramStore(testProgram()),
		metas:      newMockMetaStore(),
		records:    newMockAttendanceStore(),
		enrollment: &mockEnrollmentStore{trainees: map[string]bool{"t1": true, "t2": true}},
		audits:     &mockAuditStore{},
		checker:    capability.DefaultMatrix(),
	}
}

func (f *sessionFixture) dayDeps() SessionDayDeps {
	return SessionDayDeps{
		Checker:      f.checker,
		ProgramStore: f.programs,
		MetaStore:    f.metas,
		AuditStore:   f.audits,
		Now:          sessionClock,
	}
}

func (f *sessionFixture) recordDeps(now time.Time) RecordAttendanceDeps {
	return RecordAttendanceDeps{
		Checker:         f.checker,
		ProgramStore:    f.programs,
		MetaStore:       f.metas,
		AttendanceStore: f.records,
		EnrollmentStore: f.enrollment,
		AuditStore:      f.audits,
		Now:             func() time.Time { return now },
	}
}

func (f *sessionFixture) extendDeps() ExtendProgramEndDateDeps {
	return ExtendProgramEndDateDeps{
		Checker:      f.checker,
		ProgramStore: f.programs,
		AuditStore:   f.audits,
		Now:          sessionClock,
	}
}

// dayInput builds a coach request for day d of p1.
func dayInput(d int, reason string) SessionDayInput {
	return SessionDayInput{ProgramID: "p1", Date: day(d), Reason: reason, ActorID: "coach-1", ActorRole: capability.RoleCoach}
}
