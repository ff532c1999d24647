package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/appointment-engine/internal/recurrence"
	"github.com/example/appointment-engine/internal/timeutil"
)

// ExpandRecurringTemplate previews the instances of a template without
// storing anything. Every violated rule, of the booking fields and of the
// recurrence, is reported in one ValidationError.
func (s *AppointmentService) ExpandRecurringTemplate(ctx context.Context, template RecurringTemplate) ([]RecurringInstance, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	logger := s.loggerWith(ctx, "ExpandRecurringTemplate",
		"date", template.Input.Date, "pattern", template.Pattern.String())

	instances, _, err := s.expand(template)
	if err != nil {
		logger.WarnContext(ctx, "template rejected", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	logger.DebugContext(ctx, "template expanded", "instance_count", len(instances))
	return instances, nil
}

// CreateRecurringSeries expands template and books every instance with its
// companion break. Every instance is a concrete booking sharing the series
// group id; later instances point at the first through ParentTaskID.
// Instances moved off a weekend onto a date the series already occupies are
// skipped. All instances are conflict checked before the first write.
func (s *AppointmentService) CreateRecurringSeries(ctx context.Context, template RecurringTemplate) (series RecurringSeries, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRecurringSeries",
		"date", template.Input.Date, "pattern", template.Pattern.String())
	defer func() {
		logOutcome(ctx, logger, err, "failed to create recurring series", "recurring series created",
			"recurring_task_id", series.RecurringTaskID,
			"instance_count", len(series.Appointments),
			"skipped_count", len(series.Skipped))
	}()

	if s.appointments == nil {
		err = errRepositoryNotConfigured
		return
	}

	instances, groupID, err := s.expand(template)
	if err != nil {
		return
	}

	var planned []Appointment
	seenDates := make(map[string]struct{}, len(instances))
	for _, instance := range instances {
		if _, dup := seenDates[instance.Appointment.Date]; dup {
			series.Skipped = append(series.Skipped, instance)
			continue
		}
		seenDates[instance.Appointment.Date] = struct{}{}
		planned = append(planned, instance.Appointment)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.ensureSeriesFree(ctx, planned); err != nil {
		return
	}

	createdAt := s.now()
	for i := range planned {
		planned[i].ID = s.idGenerator()
		planned[i].CreatedAt = createdAt
		planned[i].UpdatedAt = createdAt
		if i > 0 {
			firstID := planned[0].ID
			planned[i].ParentTaskID = &firstID
		}
	}

	created := make([]Appointment, 0, len(planned))
	for _, appointment := range planned {
		stored, insertErr := s.insertWithCompanion(ctx, appointment)
		if insertErr != nil {
			s.rollbackSeries(ctx, created)
			err = insertErr
			return
		}
		created = append(created, stored)
	}

	s.cache.Invalidate()
	series.RecurringTaskID = groupID
	series.Appointments = created
	return
}

// expand validates template and returns its instances tagged with a fresh
// group id. Instances are concrete: IsRecurring stays false.
func (s *AppointmentService) expand(template RecurringTemplate) ([]RecurringInstance, string, error) {
	vErr := validateAppointmentInput(template.Input)
	if template.Input.IsPomodoro {
		vErr.add("is_pomodoro", "a recurring template cannot be a break")
	}

	var rErr *recurrence.ValidationError
	if err := recurrence.Validate(template.recurrence()); err != nil {
		if !errors.As(err, &rErr) {
			return nil, "", err
		}
		vErr.mergeRecurrence(rErr)
	}

	var base Appointment
	if !vErr.HasErrors() {
		var err error
		base, err = s.templateBase(template)
		if err != nil {
			return nil, "", err
		}
		s.checkFitsDay(base, vErr)
	}
	if vErr.HasErrors() {
		return nil, "", vErr
	}

	dates, err := recurrence.Expand(template.recurrence())
	if err != nil {
		return nil, "", err
	}

	groupID := s.idGenerator()
	instances := make([]RecurringInstance, 0, len(dates))
	for _, date := range dates {
		appointment := base
		appointment.Date = date.Date
		appointment.OriginalDate = date.OriginalDate
		appointment.WasRescheduledFromWeekend = date.WasRescheduledFromWeekend
		group := groupID
		appointment.RecurringTaskID = &group
		instances = append(instances, RecurringInstance{Sequence: date.Sequence, Appointment: appointment})
	}
	return instances, groupID, nil
}

// templateBase builds the fields every instance inherits from the template.
func (s *AppointmentService) templateBase(template RecurringTemplate) (Appointment, error) {
	input := template.Input
	start, err := timeutil.ToMinutes(input.StartTime)
	if err != nil {
		return Appointment{}, err
	}
	base := Appointment{
		UserID:             input.UserID,
		Title:              input.Title,
		Description:        input.Description,
		Date:               input.Date,
		StartTime:          timeutil.ToTimeString(start),
		EndTime:            timeutil.ToTimeString(start + input.DurationMinutes),
		DurationMinutes:    input.DurationMinutes,
		Status:             StatusScheduled,
		RecurrencePattern:  template.Pattern,
		RecurrenceInterval: template.Interval,
		RecurrenceEndDate:  template.EndDate,
		RecurrenceEndCount: template.EndCount,
	}
	if input.SLAMinutes != nil {
		sla := *input.SLAMinutes
		base.SLAMinutes = &sla
	}
	return base, nil
}

// ensureSeriesFree checks every planned instance against the bookings already
// stored in the series' date range and merges the overlaps into one
// ConflictError.
func (s *AppointmentService) ensureSeriesFree(ctx context.Context, planned []Appointment) error {
	if len(planned) == 0 {
		return nil
	}
	from, to := planned[0].Date, planned[0].Date
	for _, appointment := range planned[1:] {
		if appointment.Date < from {
			from = appointment.Date
		}
		if appointment.Date > to {
			to = appointment.Date
		}
	}

	existing, err := s.appointments.ListAppointments(ctx, AppointmentQuery{FromDate: from, ToDate: to})
	if err != nil {
		return err
	}
	byDate := make(map[string][]Appointment)
	for _, appointment := range existing {
		byDate[appointment.Date] = append(byDate[appointment.Date], appointment)
	}

	var combined *ConflictError
	for _, appointment := range planned {
		err := conflictsWith(appointment, byDate[appointment.Date])
		if err == nil {
			continue
		}
		var cErr *ConflictError
		if !errors.As(err, &cErr) {
			return err
		}
		if combined == nil {
			combined = cErr
			continue
		}
		combined.Conflicts = append(combined.Conflicts, cErr.Conflicts...)
	}
	if combined != nil {
		return combined
	}
	return nil
}

func (s *AppointmentService) rollbackSeries(ctx context.Context, created []Appointment) {
	logger := s.loggerWith(ctx, "CreateRecurringSeries")
	for _, appointment := range created {
		companions, err := s.appointments.ListAppointments(ctx, AppointmentQuery{CompanionOfID: appointment.ID})
		if err != nil {
			logger.ErrorContext(ctx, "failed to roll back series instance", "error", err, "appointment_id", appointment.ID)
			continue
		}
		for _, companion := range companions {
			if err := s.appointments.DeleteAppointment(ctx, companion.ID); err != nil && !isNotFoundError(err) {
				logger.ErrorContext(ctx, "failed to roll back series break", "error", err,
					"appointment_id", appointment.ID, "companion_id", companion.ID)
			}
		}
		if err := s.appointments.DeleteAppointment(ctx, appointment.ID); err != nil && !isNotFoundError(err) {
			logger.ErrorContext(ctx, "failed to roll back series instance", "error", err, "appointment_id", appointment.ID)
		}
	}
}
