package application

import (
	"context"
	"fmt"
	"math"

	"github.com/example/appointment-engine/internal/timer"
)

// StartTimer starts the work timer of an appointment.
func (s *AppointmentService) StartTimer(ctx context.Context, id string) (Appointment, error) {
	return s.ApplyTimerAction(ctx, id, timer.ActionStart)
}

// PauseTimer banks the running segment.
func (s *AppointmentService) PauseTimer(ctx context.Context, id string) (Appointment, error) {
	return s.ApplyTimerAction(ctx, id, timer.ActionPause)
}

// ResumeTimer starts a new running segment.
func (s *AppointmentService) ResumeTimer(ctx context.Context, id string) (Appointment, error) {
	return s.ApplyTimerAction(ctx, id, timer.ActionResume)
}

// CompleteTimer finalises the timer and marks the appointment completed.
func (s *AppointmentService) CompleteTimer(ctx context.Context, id string) (Appointment, error) {
	return s.ApplyTimerAction(ctx, id, timer.ActionComplete)
}

// ApplyTimerAction runs one timer transition. A rejected transition returns
// the *timer.InvalidTransitionError unchanged and writes nothing.
func (s *AppointmentService) ApplyTimerAction(ctx context.Context, id string, action timer.Action) (appointment Appointment, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ApplyTimerAction", "appointment_id", id, "action", string(action))
	defer func() {
		logOutcome(ctx, logger, err, "timer transition rejected", "timer transition applied",
			"phase", string(appointment.Timer.Phase()))
	}()

	if s.appointments == nil {
		err = errRepositoryNotConfigured
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(ctx, id)
	if err != nil {
		return
	}

	now := s.now()
	session, err := existing.Timer.Apply(action, now)
	if err != nil {
		return
	}

	next := existing
	next.Timer = session
	if action == timer.ActionComplete {
		next.Status = StatusCompleted
	}
	next.UpdatedAt = now

	if err = s.appointments.UpdateAppointment(ctx, next); err != nil {
		err = mapRepoError(err, id)
		return
	}
	if action == timer.ActionComplete {
		s.cache.Invalidate()
	}
	appointment = next
	return
}

// Progress reports the live timer of an appointment. The running segment is
// added on read; nothing is stored.
func (s *AppointmentService) Progress(ctx context.Context, id string) (Progress, error) {
	appointment, err := s.GetAppointment(ctx, id)
	if err != nil {
		return Progress{}, err
	}

	session := appointment.Timer
	elapsed := session.Elapsed(s.now())
	if session.ActualMinutes != nil {
		elapsed = *session.ActualMinutes
	}
	planned := float64(appointment.DurationMinutes)

	return Progress{
		AppointmentID:      appointment.ID,
		Phase:              session.Phase(),
		PlannedMinutes:     appointment.DurationMinutes,
		AccumulatedMinutes: session.AccumulatedMinutes,
		ElapsedMinutes:     elapsed,
		RemainingMinutes:   math.Max(planned-elapsed, 0),
		Overrun:            elapsed > planned,
	}, nil
}
