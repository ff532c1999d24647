package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/appointment-engine/internal/persistence"
)

const appointmentColumns = `id, user_id, title, description, date, start_time, end_time, duration_minutes,
	is_pomodoro, companion_of_id, status, sla_minutes, reschedule_count,
	timer_state, timer_started_at, timer_paused_at, accumulated_time_minutes, actual_time_minutes, completed_at,
	is_recurring, recurrence_pattern, recurrence_interval, recurrence_end_date, recurrence_end_count,
	parent_task_id, recurring_task_id, is_recurring_template, original_date, was_rescheduled_from_weekend,
	created_at, updated_at`

// AppointmentRepository implements persistence.AppointmentRepository using SQLite
type AppointmentRepository struct {
	pool   *ConnectionPool
	mapper ErrorMapper
}

// NewAppointmentRepository creates a new SQLite appointment repository
func NewAppointmentRepository(pool *ConnectionPool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// InsertAppointment stores a new appointment
func (r *AppointmentRepository) InsertAppointment(ctx context.Context, appointment persistence.Appointment) error {
	if appointment.ID == "" {
		return fmt.Errorf("appointment id is required")
	}

	query := `INSERT INTO appointments (` + appointmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	args := append([]any{appointment.ID}, appointmentValues(appointment)...)
	args = append(args, formatTime(appointment.CreatedAt), formatTime(appointment.UpdatedAt))

	if _, err := r.pool.DB().ExecContext(ctx, query, args...); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateAppointment replaces every mutable column of an existing appointment.
// created_at is never rewritten.
func (r *AppointmentRepository) UpdateAppointment(ctx context.Context, appointment persistence.Appointment) error {
	query := `UPDATE appointments SET
		user_id = ?, title = ?, description = ?, date = ?, start_time = ?, end_time = ?, duration_minutes = ?,
		is_pomodoro = ?, companion_of_id = ?, status = ?, sla_minutes = ?, reschedule_count = ?,
		timer_state = ?, timer_started_at = ?, timer_paused_at = ?, accumulated_time_minutes = ?, actual_time_minutes = ?, completed_at = ?,
		is_recurring = ?, recurrence_pattern = ?, recurrence_interval = ?, recurrence_end_date = ?, recurrence_end_count = ?,
		parent_task_id = ?, recurring_task_id = ?, is_recurring_template = ?, original_date = ?, was_rescheduled_from_weekend = ?,
		updated_at = ?
		WHERE id = ?`

	args := appointmentValues(appointment)
	args = append(args, formatTime(appointment.UpdatedAt), appointment.ID)

	result, err := r.pool.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetAppointment retrieves an appointment by ID
func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	appointment, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Appointment{}, persistence.ErrNotFound
		}
		return persistence.Appointment{}, r.mapper.MapError(err)
	}
	return appointment, nil
}

// DeleteAppointment removes an appointment and, in the same transaction, the
// break rows linked to it through companion_of_id.
func (r *AppointmentRepository) DeleteAppointment(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM appointments WHERE companion_of_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM appointments WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// ListAppointments lists appointments filtered by the provided filter
func (r *AppointmentRepository) ListAppointments(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var appointments []persistence.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return appointments, nil
}

func buildListQuery(filter persistence.AppointmentFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Date != "" {
		conditions = append(conditions, "date = ?")
		args = append(args, filter.Date)
	} else {
		if filter.FromDate != "" {
			conditions = append(conditions, "date >= ?")
			args = append(args, filter.FromDate)
		}
		if filter.ToDate != "" {
			conditions = append(conditions, "date <= ?")
			args = append(args, filter.ToDate)
		}
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		conditions = append(conditions, "status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.CompanionOfID != "" {
		conditions = append(conditions, "companion_of_id = ?")
		args = append(args, filter.CompanionOfID)
	}
	if filter.RecurringTaskID != "" {
		conditions = append(conditions, "recurring_task_id = ?")
		args = append(args, filter.RecurringTaskID)
	}
	if filter.IsPomodoro != nil {
		conditions = append(conditions, "is_pomodoro = ?")
		args = append(args, *filter.IsPomodoro)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, start_time ASC, id ASC"
	return query, args
}

// appointmentValues lists the columns between id and created_at in
// appointmentColumns order.
func appointmentValues(a persistence.Appointment) []any {
	return []any{
		a.UserID, a.Title, a.Description, a.Date, a.StartTime, a.EndTime, a.DurationMinutes,
		a.IsPomodoro, nullString(a.CompanionOfID), a.Status, nullInt(a.SLAMinutes), a.RescheduleCount,
		a.TimerState, nullTime(a.TimerStartedAt), nullTime(a.TimerPausedAt), a.AccumulatedTimeMinutes,
		nullFloat(a.ActualTimeMinutes), nullTime(a.CompletedAt),
		a.IsRecurring, a.RecurrencePattern, a.RecurrenceInterval, nullString(a.RecurrenceEndDate), nullInt(a.RecurrenceEndCount),
		nullString(a.ParentTaskID), nullString(a.RecurringTaskID), a.IsRecurringTemplate, nullString(a.OriginalDate),
		a.WasRescheduledFromWeekend,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (persistence.Appointment, error) {
	var a persistence.Appointment
	var companionOfID, recurrenceEndDate, parentTaskID, recurringTaskID, originalDate sql.NullString
	var timerStartedAt, timerPausedAt, completedAt sql.NullString
	var slaMinutes, recurrenceEndCount sql.NullInt64
	var actualTime sql.NullFloat64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&a.ID, &a.UserID, &a.Title, &a.Description, &a.Date, &a.StartTime, &a.EndTime, &a.DurationMinutes,
		&a.IsPomodoro, &companionOfID, &a.Status, &slaMinutes, &a.RescheduleCount,
		&a.TimerState, &timerStartedAt, &timerPausedAt, &a.AccumulatedTimeMinutes, &actualTime, &completedAt,
		&a.IsRecurring, &a.RecurrencePattern, &a.RecurrenceInterval, &recurrenceEndDate, &recurrenceEndCount,
		&parentTaskID, &recurringTaskID, &a.IsRecurringTemplate, &originalDate, &a.WasRescheduledFromWeekend,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return persistence.Appointment{}, err
	}

	a.CompanionOfID = stringPtr(companionOfID)
	a.RecurrenceEndDate = stringPtr(recurrenceEndDate)
	a.ParentTaskID = stringPtr(parentTaskID)
	a.RecurringTaskID = stringPtr(recurringTaskID)
	a.OriginalDate = stringPtr(originalDate)
	a.SLAMinutes = intPtr(slaMinutes)
	a.RecurrenceEndCount = intPtr(recurrenceEndCount)
	if actualTime.Valid {
		value := actualTime.Float64
		a.ActualTimeMinutes = &value
	}

	if a.TimerStartedAt, err = parseNullTime(timerStartedAt); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse timer_started_at: %w", err)
	}
	if a.TimerPausedAt, err = parseNullTime(timerPausedAt); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse timer_paused_at: %w", err)
	}
	if a.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse completed_at: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	i := int(value.Int64)
	return &i
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
