package application

import (
	"context"
	"fmt"

	"github.com/example/appointment-engine/internal/timer"
)

// Sweep is the periodic maintenance pass. It completes companion breaks whose
// end has passed and stores the delayed status of open appointments past
// their SLA. Appointments with a running or paused timer are left alone.
func (s *AppointmentService) Sweep(ctx context.Context) (result SweepResult, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Sweep")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sweep failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if result.CompletedBreaks > 0 || result.Delayed > 0 {
			logger.InfoContext(ctx, "sweep changed appointments",
				"completed_breaks", result.CompletedBreaks, "delayed", result.Delayed)
		}
	}()

	if s.appointments == nil {
		err = errRepositoryNotConfigured
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	open, err := s.appointments.ListAppointments(ctx, AppointmentQuery{
		Statuses: []Status{StatusScheduled, StatusRescheduled, StatusDelayed},
	})
	if err != nil {
		return
	}

	now := s.now()
	for _, appointment := range open {
		next := appointment
		switch {
		case appointment.IsPomodoro:
			end, endErr := appointment.ScheduledEnd(s.location)
			phase := appointment.Timer.Phase()
			if endErr != nil || now.Before(end) || phase == timer.PhaseRunning || phase == timer.PhasePaused {
				continue
			}
			completedAt := now
			next.Status = StatusCompleted
			next.Timer.CompletedAt = &completedAt
		case appointment.Status != StatusDelayed && appointment.EffectiveStatus(now, s.location) == StatusDelayed:
			next.Status = StatusDelayed
		default:
			continue
		}

		next.UpdatedAt = now
		if err = s.appointments.UpdateAppointment(ctx, next); err != nil {
			err = mapRepoError(err, appointment.ID)
			return
		}
		if next.Status == StatusCompleted {
			result.CompletedBreaks++
		} else {
			result.Delayed++
		}
	}

	if result.CompletedBreaks > 0 || result.Delayed > 0 {
		s.cache.Invalidate()
	}
	return
}
