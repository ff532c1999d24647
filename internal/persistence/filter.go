package persistence

import (
	"slices"
	"sort"
)

// Matches reports whether appointment satisfies every set field of f.
func (f AppointmentFilter) Matches(appointment Appointment) bool {
	if f.Date != "" {
		if appointment.Date != f.Date {
			return false
		}
	} else {
		if f.FromDate != "" && appointment.Date < f.FromDate {
			return false
		}
		if f.ToDate != "" && appointment.Date > f.ToDate {
			return false
		}
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, appointment.Status) {
		return false
	}
	if f.UserID != "" && appointment.UserID != f.UserID {
		return false
	}
	if f.CompanionOfID != "" && (appointment.CompanionOfID == nil || *appointment.CompanionOfID != f.CompanionOfID) {
		return false
	}
	if f.RecurringTaskID != "" && (appointment.RecurringTaskID == nil || *appointment.RecurringTaskID != f.RecurringTaskID) {
		return false
	}
	if f.IsPomodoro != nil && appointment.IsPomodoro != *f.IsPomodoro {
		return false
	}
	return true
}

// SortAppointments orders appointments by date, start time and id.
func SortAppointments(appointments []Appointment) {
	sort.SliceStable(appointments, func(i, j int) bool {
		a, b := appointments[i], appointments[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}
