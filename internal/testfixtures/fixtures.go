package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/persistence"
	"github.com/example/appointment-engine/internal/timeutil"
)

var appointmentCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceDate is the Monday fixtures are booked on unless overridden.
const ReferenceDate = "2024-06-10"

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// AppointmentFixture represents a deterministic appointment record that can be
// materialised for application or persistence tests.
type AppointmentFixture struct {
	ID              string
	UserID          string
	Title           string
	Description     string
	Date            string
	StartTime       string
	DurationMinutes int
	IsPomodoro      bool
	CompanionOfID   *string
	Status          application.Status
	SLAMinutes      *int
	RecurringTaskID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppointmentOption configures the generated appointment fixture.
type AppointmentOption func(*AppointmentFixture)

// NewAppointmentFixture returns a deterministic 30 minute appointment at 09:00
// on ReferenceDate with optional overrides.
func NewAppointmentFixture(opts ...AppointmentOption) AppointmentFixture {
	idx := atomic.AddUint64(&appointmentCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := AppointmentFixture{
		ID:              fmt.Sprintf("appointment-%03d", idx),
		Title:           fmt.Sprintf("Appointment %03d", idx),
		Date:            ReferenceDate,
		StartTime:       "09:00",
		DurationMinutes: 30,
		Status:          application.StatusScheduled,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAppointmentID overrides the generated appointment ID.
func WithAppointmentID(id string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.ID = id
	}
}

// WithUserID sets the owner of the appointment.
func WithUserID(userID string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.UserID = userID
	}
}

// WithTitle overrides the generated title.
func WithTitle(title string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Title = title
	}
}

// WithSlot places the appointment at date and start for duration minutes.
func WithSlot(date, start string, duration int) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Date = date
		f.StartTime = start
		f.DurationMinutes = duration
	}
}

// WithBreakFor marks the fixture as the companion break of parentID.
func WithBreakFor(parentID string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.IsPomodoro = true
		f.Title = "Break"
		f.CompanionOfID = &parentID
	}
}

// WithPomodoro marks the fixture as an unlinked Pomodoro break.
func WithPomodoro() AppointmentOption {
	return func(f *AppointmentFixture) {
		f.IsPomodoro = true
	}
}

// WithStatus overrides the lifecycle status.
func WithStatus(status application.Status) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Status = status
	}
}

// WithSLA sets the SLA window in minutes.
func WithSLA(minutes int) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.SLAMinutes = &minutes
	}
}

// WithRecurringTaskID attaches the fixture to a recurring series.
func WithRecurringTaskID(id string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.RecurringTaskID = &id
	}
}

// WithTimestamps sets both created and updated timestamps on the fixture.
func WithTimestamps(created, updated time.Time) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// EndTime derives the end of the fixture's slot. Fixtures that cannot be
// represented as a valid slot yield an empty string.
func (f AppointmentFixture) EndTime() string {
	end, err := timeutil.AddMinutes(f.StartTime, f.DurationMinutes)
	if err != nil {
		return ""
	}
	return end
}

// Application returns the fixture as an application.Appointment value.
func (f AppointmentFixture) Application() application.Appointment {
	return application.Appointment{
		ID:              f.ID,
		UserID:          f.UserID,
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime(),
		DurationMinutes: f.DurationMinutes,
		IsPomodoro:      f.IsPomodoro,
		CompanionOfID:   f.CompanionOfID,
		Status:          f.Status,
		SLAMinutes:      f.SLAMinutes,
		RecurringTaskID: f.RecurringTaskID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Appointment value.
func (f AppointmentFixture) Persistence() persistence.Appointment {
	return persistence.Appointment{
		ID:              f.ID,
		UserID:          f.UserID,
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime(),
		DurationMinutes: f.DurationMinutes,
		IsPomodoro:      f.IsPomodoro,
		CompanionOfID:   f.CompanionOfID,
		Status:          f.Status.String(),
		SLAMinutes:      f.SLAMinutes,
		TimerState:      "stopped",
		RecurringTaskID: f.RecurringTaskID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}.Clone()
}

// Input returns the fixture as an application.AppointmentInput.
func (f AppointmentFixture) Input() application.AppointmentInput {
	return application.AppointmentInput{
		UserID:          f.UserID,
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		StartTime:       f.StartTime,
		DurationMinutes: f.DurationMinutes,
		IsPomodoro:      f.IsPomodoro,
		SLAMinutes:      f.SLAMinutes,
	}
}
