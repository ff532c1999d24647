package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/appointment-engine/internal/application"
)

type capturingAppointmentRepo struct {
	inserted []application.Appointment
}

func (c *capturingAppointmentRepo) InsertAppointment(ctx context.Context, appointment application.Appointment) error {
	c.inserted = append(c.inserted, appointment)
	return nil
}

func (c *capturingAppointmentRepo) UpdateAppointment(ctx context.Context, appointment application.Appointment) error {
	return nil
}

func (c *capturingAppointmentRepo) GetAppointment(ctx context.Context, id string) (application.Appointment, error) {
	return application.Appointment{}, &application.NotFoundError{ID: id}
}

func (c *capturingAppointmentRepo) DeleteAppointment(ctx context.Context, id string) error {
	return nil
}

func (c *capturingAppointmentRepo) ListAppointments(ctx context.Context, query application.AppointmentQuery) ([]application.Appointment, error) {
	return nil, nil
}

func TestServiceFactoryNewAppointmentService(t *testing.T) {
	factory := NewServiceFactory(WithClock(NewClock(time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC))))
	repo := &capturingAppointmentRepo{}

	svc := factory.NewAppointmentService(AppointmentServiceDeps{Appointments: repo})
	input := NewAppointmentFixture(WithSlot(ReferenceDate, "09:00", 25)).Input()

	appointment, err := svc.CreateAppointment(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateAppointment returned error: %v", err)
	}

	if appointment.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", appointment.ID)
	}
	if len(repo.inserted) != 2 {
		t.Fatalf("expected appointment and companion break to be stored, got %d rows", len(repo.inserted))
	}
	if repo.inserted[1].ID != "id-2" || !repo.inserted[1].IsPomodoro {
		t.Fatalf("expected companion break id-2, got %+v", repo.inserted[1])
	}
	if !appointment.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), appointment.CreatedAt)
	}
}

func TestServiceFactoryDefaultsToMemoryStore(t *testing.T) {
	factory := NewServiceFactory()
	svc := factory.NewAppointmentService(AppointmentServiceDeps{})

	ctx := context.Background()
	if _, err := svc.CreateAppointment(ctx, NewAppointmentFixture().Input()); err != nil {
		t.Fatalf("CreateAppointment returned error: %v", err)
	}
	day, err := svc.ListAppointmentsByDate(ctx, ReferenceDate)
	if err != nil {
		t.Fatalf("ListAppointmentsByDate returned error: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("expected appointment and break on %s, got %d", ReferenceDate, len(day))
	}
}

func TestAppointmentFixtureViews(t *testing.T) {
	fixture := NewAppointmentFixture(WithSlot("2024-06-11", "23:30", 25), WithSLA(15))

	if fixture.EndTime() != "23:55" {
		t.Fatalf("expected derived end time 23:55, got %q", fixture.EndTime())
	}
	record := fixture.Persistence()
	if record.Status != "scheduled" || record.TimerState != "stopped" {
		t.Fatalf("unexpected stored enumerations %q %q", record.Status, record.TimerState)
	}
	*record.SLAMinutes = 99
	if *fixture.SLAMinutes != 15 {
		t.Fatalf("expected persistence view to be detached from the fixture")
	}
	if fixture.Application().EndTime != "23:55" {
		t.Fatalf("expected application view to carry end time")
	}
}
