package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/appointment-engine/internal/persistence"
	"github.com/example/appointment-engine/internal/recurrence"
	"github.com/example/appointment-engine/internal/timer"
)

// StoreRepository adapts a persistence store to AppointmentRepository.
type StoreRepository struct {
	store persistence.AppointmentRepository
}

// NewStoreRepository wraps store.
func NewStoreRepository(store persistence.AppointmentRepository) *StoreRepository {
	return &StoreRepository{store: store}
}

// InsertAppointment stores a new appointment.
func (r *StoreRepository) InsertAppointment(ctx context.Context, appointment Appointment) error {
	return r.mapError(appointment.ID, r.store.InsertAppointment(ctx, toRecord(appointment)))
}

// UpdateAppointment replaces a stored appointment.
func (r *StoreRepository) UpdateAppointment(ctx context.Context, appointment Appointment) error {
	return r.mapError(appointment.ID, r.store.UpdateAppointment(ctx, toRecord(appointment)))
}

// GetAppointment loads one appointment.
func (r *StoreRepository) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	record, err := r.store.GetAppointment(ctx, id)
	if err != nil {
		return Appointment{}, r.mapError(id, err)
	}
	return fromRecord(record)
}

// DeleteAppointment removes one appointment.
func (r *StoreRepository) DeleteAppointment(ctx context.Context, id string) error {
	return r.mapError(id, r.store.DeleteAppointment(ctx, id))
}

// ListAppointments returns the appointments matching query.
func (r *StoreRepository) ListAppointments(ctx context.Context, query AppointmentQuery) ([]Appointment, error) {
	filter := persistence.AppointmentFilter{
		Date:            query.Date,
		FromDate:        query.FromDate,
		ToDate:          query.ToDate,
		UserID:          query.UserID,
		CompanionOfID:   query.CompanionOfID,
		RecurringTaskID: query.RecurringTaskID,
		IsPomodoro:      query.IsPomodoro,
	}
	for _, status := range query.Statuses {
		filter.Statuses = append(filter.Statuses, status.String())
	}

	records, err := r.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(records))
	for _, record := range records {
		appointment, err := fromRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, appointment)
	}
	return out, nil
}

func (r *StoreRepository) mapError(id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}

func toRecord(a Appointment) persistence.Appointment {
	record := persistence.Appointment{
		ID:                        a.ID,
		UserID:                    a.UserID,
		Title:                     a.Title,
		Description:               a.Description,
		Date:                      a.Date,
		StartTime:                 a.StartTime,
		EndTime:                   a.EndTime,
		DurationMinutes:           a.DurationMinutes,
		IsPomodoro:                a.IsPomodoro,
		CompanionOfID:             a.CompanionOfID,
		Status:                    a.Status.String(),
		SLAMinutes:                a.SLAMinutes,
		RescheduleCount:           a.RescheduleCount,
		TimerState:                a.Timer.State.String(),
		TimerStartedAt:            a.Timer.StartedAt,
		TimerPausedAt:             a.Timer.PausedAt,
		AccumulatedTimeMinutes:    a.Timer.AccumulatedMinutes,
		ActualTimeMinutes:         a.Timer.ActualMinutes,
		CompletedAt:               a.Timer.CompletedAt,
		IsRecurring:               a.IsRecurring,
		RecurrencePattern:         a.RecurrencePattern.String(),
		RecurrenceInterval:        a.RecurrenceInterval,
		ParentTaskID:              a.ParentTaskID,
		RecurringTaskID:           a.RecurringTaskID,
		IsRecurringTemplate:       a.IsRecurringTemplate,
		WasRescheduledFromWeekend: a.WasRescheduledFromWeekend,
		CreatedAt:                 a.CreatedAt,
		UpdatedAt:                 a.UpdatedAt,
	}
	if a.RecurrenceEndDate != "" {
		record.RecurrenceEndDate = &a.RecurrenceEndDate
	}
	if a.RecurrenceEndCount > 0 {
		record.RecurrenceEndCount = &a.RecurrenceEndCount
	}
	if a.OriginalDate != "" {
		record.OriginalDate = &a.OriginalDate
	}
	return record.Clone()
}

func fromRecord(record persistence.Appointment) (Appointment, error) {
	record = record.Clone()

	status, err := ParseStatus(record.Status)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment %s: %w", record.ID, err)
	}
	state, err := timer.ParseState(record.TimerState)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment %s: %w", record.ID, err)
	}
	pattern, err := recurrence.ParsePattern(record.RecurrencePattern)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment %s: %w", record.ID, err)
	}

	a := Appointment{
		ID:              record.ID,
		UserID:          record.UserID,
		Title:           record.Title,
		Description:     record.Description,
		Date:            record.Date,
		StartTime:       record.StartTime,
		EndTime:         record.EndTime,
		DurationMinutes: record.DurationMinutes,
		IsPomodoro:      record.IsPomodoro,
		CompanionOfID:   record.CompanionOfID,
		Status:          status,
		SLAMinutes:      record.SLAMinutes,
		RescheduleCount: record.RescheduleCount,
		Timer: timer.Session{
			State:              state,
			StartedAt:          record.TimerStartedAt,
			PausedAt:           record.TimerPausedAt,
			AccumulatedMinutes: record.AccumulatedTimeMinutes,
			ActualMinutes:      record.ActualTimeMinutes,
			CompletedAt:        record.CompletedAt,
		},
		IsRecurring:               record.IsRecurring,
		RecurrencePattern:         pattern,
		RecurrenceInterval:        record.RecurrenceInterval,
		ParentTaskID:              record.ParentTaskID,
		RecurringTaskID:           record.RecurringTaskID,
		IsRecurringTemplate:       record.IsRecurringTemplate,
		WasRescheduledFromWeekend: record.WasRescheduledFromWeekend,
		CreatedAt:                 record.CreatedAt,
		UpdatedAt:                 record.UpdatedAt,
	}
	if record.RecurrenceEndDate != nil {
		a.RecurrenceEndDate = *record.RecurrenceEndDate
	}
	if record.RecurrenceEndCount != nil {
		a.RecurrenceEndCount = *record.RecurrenceEndCount
	}
	if record.OriginalDate != nil {
		a.OriginalDate = *record.OriginalDate
	}
	return a, nil
}
