// Package memory provides an in-process appointment store.
package memory

import (
	"context"
	"sync"

	"github.com/example/appointment-engine/internal/persistence"
)

// Storage keeps appointments in a map guarded by a RWMutex.
type Storage struct {
	mu           sync.RWMutex
	appointments map[string]persistence.Appointment
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{appointments: make(map[string]persistence.Appointment)}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// InsertAppointment stores a new appointment.
func (s *Storage) InsertAppointment(_ context.Context, appointment persistence.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[appointment.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.appointments[appointment.ID] = appointment.Clone()
	return nil
}

// UpdateAppointment replaces an existing appointment.
func (s *Storage) UpdateAppointment(_ context.Context, appointment persistence.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.appointments[appointment.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	appointment.CreatedAt = current.CreatedAt
	s.appointments[appointment.ID] = appointment.Clone()
	return nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Storage) GetAppointment(_ context.Context, id string) (persistence.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appointment, ok := s.appointments[id]
	if !ok {
		return persistence.Appointment{}, persistence.ErrNotFound
	}
	return appointment.Clone(), nil
}

// DeleteAppointment removes an appointment by ID together with the breaks
// linked to it.
func (s *Storage) DeleteAppointment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[id]; !ok {
		return persistence.ErrNotFound
	}
	for otherID, other := range s.appointments {
		if other.CompanionOfID != nil && *other.CompanionOfID == id {
			delete(s.appointments, otherID)
		}
	}
	delete(s.appointments, id)
	return nil
}

// ListAppointments returns the appointments matching filter.
func (s *Storage) ListAppointments(_ context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Appointment, 0)
	for _, appointment := range s.appointments {
		if filter.Matches(appointment) {
			out = append(out, appointment.Clone())
		}
	}
	persistence.SortAppointments(out)
	return out, nil
}
