package persistence

import "context"

// AppointmentFilter narrows appointment queries. Zero-valued fields do not
// filter. Date takes precedence over the FromDate/ToDate range, which is
// inclusive on both ends.
type AppointmentFilter struct {
	Date            string
	FromDate        string
	ToDate          string
	Statuses        []string
	UserID          string
	CompanionOfID   string
	RecurringTaskID string
	IsPomodoro      *bool
}

// AppointmentRepository stores appointments. List results are ordered by
// date, start time and id. Deleting an appointment also deletes the rows whose
// CompanionOfID names it.
type AppointmentRepository interface {
	InsertAppointment(ctx context.Context, appointment Appointment) error
	UpdateAppointment(ctx context.Context, appointment Appointment) error
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
}
