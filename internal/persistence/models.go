package persistence

import "time"

// Appointment is the stored shape of a booking. Enumerations are kept as
// their wire names so any store can hold them without translation.
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
	Status        string
	SLAMinutes    *int

	RescheduleCount int

	TimerState             string
	TimerStartedAt         *time.Time
	TimerPausedAt          *time.Time
	AccumulatedTimeMinutes float64
	ActualTimeMinutes      *float64
	CompletedAt            *time.Time

	IsRecurring               bool
	RecurrencePattern         string
	RecurrenceInterval        int
	RecurrenceEndDate         *string
	RecurrenceEndCount        *int
	ParentTaskID              *string
	RecurringTaskID           *string
	IsRecurringTemplate       bool
	OriginalDate              *string
	WasRescheduledFromWeekend bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy of the appointment that shares no pointers with it.
func (a Appointment) Clone() Appointment {
	out := a
	out.CompanionOfID = clonePtr(a.CompanionOfID)
	out.SLAMinutes = clonePtr(a.SLAMinutes)
	out.TimerStartedAt = clonePtr(a.TimerStartedAt)
	out.TimerPausedAt = clonePtr(a.TimerPausedAt)
	out.ActualTimeMinutes = clonePtr(a.ActualTimeMinutes)
	out.CompletedAt = clonePtr(a.CompletedAt)
	out.RecurrenceEndDate = clonePtr(a.RecurrenceEndDate)
	out.RecurrenceEndCount = clonePtr(a.RecurrenceEndCount)
	out.ParentTaskID = clonePtr(a.ParentTaskID)
	out.RecurringTaskID = clonePtr(a.RecurringTaskID)
	out.OriginalDate = clonePtr(a.OriginalDate)
	return out
}

func clonePtr[T any](value *T) *T {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
