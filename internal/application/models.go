package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/appointment-engine/internal/recurrence"
	"github.com/example/appointment-engine/internal/scheduler"
	"github.com/example/appointment-engine/internal/timeutil"
	"github.com/example/appointment-engine/internal/timer"
	"github.com/example/appointment-engine/internal/workschedule"
)

// Status is the lifecycle state of an appointment.
type Status uint8

const (
	StatusScheduled Status = iota
	StatusCompleted
	StatusDelayed
	StatusRescheduled
	StatusCancelled
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusCompleted:
		return "completed"
	case StatusDelayed:
		return "delayed"
	case StatusRescheduled:
		return "rescheduled"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// ParseStatus maps a wire name onto a Status. The empty string yields
// StatusScheduled.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "scheduled":
		return StatusScheduled, nil
	case "completed":
		return StatusCompleted, nil
	case "delayed":
		return StatusDelayed, nil
	case "rescheduled":
		return StatusRescheduled, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return StatusScheduled, fmt.Errorf("unknown status %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Open reports whether the appointment still awaits completion.
func (s Status) Open() bool {
	return s == StatusScheduled || s == StatusDelayed || s == StatusRescheduled
}

// Appointment is a booking on one calendar day. EndTime is always derived from
// StartTime and DurationMinutes.
type Appointment struct {
	ID          string
	UserID      string
	Title       string
	Description string

	Date            string
	StartTime       string
	EndTime         string
	DurationMinutes int

	IsPomodoro    bool
	CompanionOfID *string
	Status        Status
	SLAMinutes    *int

	RescheduleCount int
	Timer           timer.Session

	IsRecurring               bool
	RecurrencePattern         recurrence.Pattern
	RecurrenceInterval        int
	RecurrenceEndDate         string
	RecurrenceEndCount        int
	ParentTaskID              *string
	RecurringTaskID           *string
	IsRecurringTemplate       bool
	OriginalDate              string
	WasRescheduledFromWeekend bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledStart is the instant the appointment begins in loc.
func (a Appointment) ScheduledStart(loc *time.Location) (time.Time, error) {
	day, err := timeutil.ParseDate(a.Date)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := timeutil.ToMinutes(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return timeutil.At(day, minutes, loc), nil
}

// ScheduledEnd is the instant the appointment ends in loc.
func (a Appointment) ScheduledEnd(loc *time.Location) (time.Time, error) {
	start, err := a.ScheduledStart(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(a.DurationMinutes) * time.Minute), nil
}

// EffectiveStatus derives the SLA view: an open appointment whose start plus
// SLAMinutes lies before now reads as delayed. Stored state is not touched.
func (a Appointment) EffectiveStatus(now time.Time, loc *time.Location) Status {
	if !a.Status.Open() || a.SLAMinutes == nil || a.Timer.CompletedAt != nil {
		return a.Status
	}
	start, err := a.ScheduledStart(loc)
	if err != nil {
		return a.Status
	}
	if now.After(start.Add(time.Duration(*a.SLAMinutes) * time.Minute)) {
		return StatusDelayed
	}
	return a.Status
}

func (a Appointment) booking() scheduler.Booking {
	return scheduler.Booking{
		ID:              a.ID,
		Title:           a.Title,
		Date:            a.Date,
		StartTime:       a.StartTime,
		DurationMinutes: a.DurationMinutes,
		IsPomodoro:      a.IsPomodoro,
		Cancelled:       a.Status == StatusCancelled,
	}
}

// AppointmentInput captures caller provided appointment fields.
type AppointmentInput struct {
	UserID          string
	Title           string
	Description     string
	Date            string
	StartTime       string
	DurationMinutes int
	IsPomodoro      bool
	SLAMinutes      *int
}

// AppointmentQuery narrows repository listings. Zero-valued fields do not
// filter.
type AppointmentQuery struct {
	Date            string
	FromDate        string
	ToDate          string
	Statuses        []Status
	UserID          string
	CompanionOfID   string
	RecurringTaskID string
	IsPomodoro      *bool
}

// RecurringTemplate describes a series: the booking fields shared by every
// instance plus the recurrence rule.
type RecurringTemplate struct {
	Input       AppointmentInput
	IsRecurring bool
	Pattern     recurrence.Pattern
	Interval    int
	EndDate     string
	EndCount    int
}

func (t RecurringTemplate) recurrence() recurrence.Template {
	return recurrence.Template{
		StartDate:   t.Input.Date,
		IsRecurring: t.IsRecurring,
		Pattern:     t.Pattern,
		Interval:    t.Interval,
		EndDate:     t.EndDate,
		EndCount:    t.EndCount,
	}
}

// RecurringInstance is one expanded occurrence of a template.
type RecurringInstance struct {
	Sequence    int
	Appointment Appointment
}

// RecurringSeries is the outcome of creating a recurring series.
type RecurringSeries struct {
	RecurringTaskID string
	Appointments    []Appointment
	Skipped         []RecurringInstance
}

// Progress is the live timer view of an appointment.
type Progress struct {
	AppointmentID      string
	Phase              timer.Phase
	PlannedMinutes     int
	AccumulatedMinutes float64
	ElapsedMinutes     float64
	RemainingMinutes   float64
	Overrun            bool
}

// AvailabilitySlot is one step of an availability scan.
type AvailabilitySlot struct {
	StartTime string
	EndTime   string
	Free      bool
	Overtime  bool
	Reason    string
	BlockedBy []string
}

// SweepResult counts the rows changed by one sweep.
type SweepResult struct {
	CompletedBreaks int
	Delayed         int
}

// WorkScheduleCheck is a request for an advisory work-schedule verdict.
type WorkScheduleCheck struct {
	UserID          string
	Date            string
	StartTime       string
	DurationMinutes int
}

// Verdict aliases the work-schedule verdict for transport layers.
type Verdict = workschedule.Verdict
