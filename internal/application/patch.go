package application

import (
	"strings"

	"github.com/example/appointment-engine/internal/timeutil"
)

// AppointmentPatch lists the fields an update changes. Nil fields are left
// as they are.
type AppointmentPatch struct {
	Title           *string
	Description     *string
	Date            *string
	StartTime       *string
	DurationMinutes *int
	Status          *Status
	SLAMinutes      *int
}

// ScheduleChange summarises how a patch moved an appointment.
type ScheduleChange struct {
	DateChanged     bool
	StartChanged    bool
	DurationChanged bool
}

// Rescheduled reports a change of date or start time.
func (c ScheduleChange) Rescheduled() bool {
	return c.DateChanged || c.StartChanged
}

// Any reports whether the occupied interval moved or resized.
func (c ScheduleChange) Any() bool {
	return c.DateChanged || c.StartChanged || c.DurationChanged
}

// Empty reports whether the patch sets nothing.
func (p AppointmentPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil && p.StartTime == nil &&
		p.DurationMinutes == nil && p.Status == nil && p.SLAMinutes == nil
}

// Apply returns a copy of current with the patch applied and reports how its
// schedule changed. EndTime is recomputed when start or duration changed and
// a reschedule of a non-Pomodoro increments RescheduleCount. current is never
// modified.
func (p AppointmentPatch) Apply(current Appointment) (Appointment, ScheduleChange, error) {
	next := current
	var change ScheduleChange
	vErr := &ValidationError{}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			vErr.add("title", "title is required")
		}
		next.Title = title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Date != nil {
		parsed, err := timeutil.ParseDate(*p.Date)
		if err != nil {
			vErr.add("date", err.Error())
		} else if normalized := timeutil.FormatDate(parsed); normalized != current.Date {
			next.Date = normalized
			change.DateChanged = true
		}
	}
	if p.StartTime != nil {
		minutes, err := timeutil.ToMinutes(*p.StartTime)
		if err != nil {
			vErr.add("start_time", err.Error())
		} else if normalized := timeutil.ToTimeString(minutes); normalized != current.StartTime {
			next.StartTime = normalized
			change.StartChanged = true
		}
	}
	if p.DurationMinutes != nil && *p.DurationMinutes != current.DurationMinutes {
		if *p.DurationMinutes <= 0 {
			vErr.add("duration_minutes", "duration must be a positive number of minutes")
		}
		next.DurationMinutes = *p.DurationMinutes
		change.DurationChanged = true
	}
	if p.SLAMinutes != nil {
		if *p.SLAMinutes < 0 {
			vErr.add("sla_minutes", "sla must not be negative")
		}
		sla := *p.SLAMinutes
		next.SLAMinutes = &sla
	}
	if p.Status != nil {
		next.Status = *p.Status
	}

	if vErr.HasErrors() {
		return current, ScheduleChange{}, vErr
	}

	if change.StartChanged || change.DurationChanged {
		end, err := timeutil.AddMinutes(next.StartTime, next.DurationMinutes)
		if err != nil {
			return current, ScheduleChange{}, err
		}
		next.EndTime = end
	}
	if change.Rescheduled() && !current.IsPomodoro {
		next.RescheduleCount = current.RescheduleCount + 1
		if p.Status == nil && current.Status.Open() {
			next.Status = StatusRescheduled
		}
	}
	return next, change, nil
}
