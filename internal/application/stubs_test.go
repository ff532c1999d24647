package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/example/appointment-engine/internal/persistence"
)

type appointmentRepoStub struct {
	mu        sync.Mutex
	rows      map[string]Appointment
	insertErr func(Appointment) error
	updateErr func(Appointment) error
	deleteErr func(Appointment) error
	listErr   error
	updates   int
}

func newAppointmentRepoStub(rows ...Appointment) *appointmentRepoStub {
	stub := &appointmentRepoStub{rows: make(map[string]Appointment)}
	for _, row := range rows {
		stub.rows[row.ID] = row
	}
	return stub
}

func (r *appointmentRepoStub) InsertAppointment(ctx context.Context, appointment Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		if err := r.insertErr(appointment); err != nil {
			return err
		}
	}
	if _, ok := r.rows[appointment.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.rows[appointment.ID] = appointment
	return nil
}

func (r *appointmentRepoStub) UpdateAppointment(ctx context.Context, appointment Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		if err := r.updateErr(appointment); err != nil {
			return err
		}
	}
	if _, ok := r.rows[appointment.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.rows[appointment.ID] = appointment
	r.updates++
	return nil
}

func (r *appointmentRepoStub) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return Appointment{}, persistence.ErrNotFound
	}
	return row, nil
}

func (r *appointmentRepoStub) DeleteAppointment(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if r.deleteErr != nil {
		if err := r.deleteErr(row); err != nil {
			return err
		}
	}
	delete(r.rows, id)
	return nil
}

func (r *appointmentRepoStub) ListAppointments(ctx context.Context, query AppointmentQuery) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Appointment
	for _, row := range r.rows {
		if matchesQuery(query, row) {
			out = append(out, row)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r *appointmentRepoStub) row(t *testing.T, id string) Appointment {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		t.Fatalf("expected stored appointment %s", id)
	}
	return row
}

func (r *appointmentRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func matchesQuery(q AppointmentQuery, a Appointment) bool {
	if q.Date != "" && a.Date != q.Date {
		return false
	}
	if q.FromDate != "" && a.Date < q.FromDate {
		return false
	}
	if q.ToDate != "" && a.Date > q.ToDate {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, a.Status) {
		return false
	}
	if q.UserID != "" && a.UserID != q.UserID {
		return false
	}
	if q.CompanionOfID != "" && (a.CompanionOfID == nil || *a.CompanionOfID != q.CompanionOfID) {
		return false
	}
	if q.RecurringTaskID != "" && (a.RecurringTaskID == nil || *a.RecurringTaskID != q.RecurringTaskID) {
		return false
	}
	if q.IsPomodoro != nil && a.IsPomodoro != *q.IsPomodoro {
		return false
	}
	return true
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	counter := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
}

func newTestService(repo AppointmentRepository, clock *testClock, opts ...ServiceOption) *AppointmentService {
	base := []ServiceOption{
		WithLocation(time.UTC),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewAppointmentService(repo, nil, sequentialIDs(), clock.Now, append(base, opts...)...)
}

func intPtr(v int) *int          { return &v }
func stringPtr(v string) *string { return &v }
