package application

import (
	"context"
	"fmt"

	"github.com/example/appointment-engine/internal/scheduler"
	"github.com/example/appointment-engine/internal/timeutil"
	"github.com/example/appointment-engine/internal/workschedule"
)

// ReasonBooked marks a slot blocked by an existing appointment.
const ReasonBooked = "booked"

// defaultWindow is scanned on days without working hours so the caller still
// sees why the day is closed.
var defaultWindow = scheduler.Window{StartTime: "09:00", EndTime: "18:00"}

// ValidateAgainstWorkSchedule classifies a proposed booking against the
// weekly rules of its user. The verdict is advisory and never blocks a write.
func (s *AppointmentService) ValidateAgainstWorkSchedule(ctx context.Context, check WorkScheduleCheck) (Verdict, error) {
	if s == nil {
		return Verdict{}, fmt.Errorf("AppointmentService is nil")
	}
	logger := s.loggerWith(ctx, "ValidateAgainstWorkSchedule", "user_id", check.UserID, "date", check.Date)

	vErr := &ValidationError{}
	if _, err := timeutil.ParseDate(check.Date); err != nil {
		vErr.add("date", err.Error())
	}
	if _, err := timeutil.ToMinutes(check.StartTime); err != nil {
		vErr.add("start_time", err.Error())
	}
	if check.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "duration must be a positive number of minutes")
	}
	if vErr.HasErrors() {
		return Verdict{}, vErr
	}

	rules, err := s.rules.RulesFor(ctx, check.UserID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load work schedule", "error", err)
		return Verdict{}, err
	}
	verdict, err := workschedule.Validate(check.Date, check.StartTime, check.DurationMinutes, rules)
	if err != nil {
		return Verdict{}, err
	}
	logger.DebugContext(ctx, "work schedule verdict",
		"valid", verdict.Valid, "overtime", verdict.Overtime, "reason", verdict.Reason.String())
	return verdict, nil
}

// Availability scans the working window of userID on date in fixed slots and
// reports, per slot, whether it is free and otherwise why not. Results are
// cached until the next mutation.
func (s *AppointmentService) Availability(ctx context.Context, date, userID string) ([]AvailabilitySlot, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	if s.appointments == nil {
		return nil, errRepositoryNotConfigured
	}
	day, err := timeutil.ParseDate(date)
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("date", err.Error())
		return nil, vErr
	}

	key := availabilityKey(date, userID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	rules, err := s.rules.RulesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	window := defaultWindow
	if start, end, ok := rules.WorkingWindow(day.Weekday()); ok {
		window = scheduler.Window{StartTime: start, EndTime: end}
	}

	existing, err := s.appointments.ListAppointments(ctx, AppointmentQuery{Date: date})
	if err != nil {
		return nil, err
	}
	bookings := make([]scheduler.Booking, 0, len(existing))
	for _, appointment := range existing {
		if userID != "" && appointment.UserID != "" && appointment.UserID != userID {
			continue
		}
		bookings = append(bookings, appointment.booking())
	}

	raw, err := scheduler.Availability(date, window, s.slotMinutes, bookings)
	if err != nil {
		return nil, err
	}

	slots := make([]AvailabilitySlot, 0, len(raw))
	for _, slot := range raw {
		out := AvailabilitySlot{StartTime: slot.StartTime, EndTime: slot.EndTime, BlockedBy: slot.BlockedBy}
		if !slot.Free {
			out.Reason = ReasonBooked
			slots = append(slots, out)
			continue
		}
		start, _ := timeutil.ToMinutes(slot.StartTime)
		end, _ := timeutil.ToMinutes(slot.EndTime)
		verdict, err := workschedule.Validate(date, slot.StartTime, end-start, rules)
		if err != nil {
			return nil, err
		}
		out.Free = verdict.Valid
		out.Overtime = verdict.Overtime
		if verdict.Overtime {
			out.Reason = "overtime"
		} else if !verdict.Valid {
			out.Reason = verdict.Reason.String()
		}
		slots = append(slots, out)
	}

	s.cache.Store(key, slots)
	return cloneSlots(slots), nil
}

// FreeSlots returns only the free start times of an availability scan.
func FreeSlots(slots []AvailabilitySlot) []string {
	var out []string
	for _, slot := range slots {
		if slot.Free {
			out = append(out, slot.StartTime)
		}
	}
	return out
}
