package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/appointment-engine/internal/recurrence"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("application: not found")

// NotFoundError reports an unknown appointment id.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e == nil || e.ID == "" {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("appointment %s not found", e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// mergeRecurrence folds template violations into the receiver.
func (v *ValidationError) mergeRecurrence(other *recurrence.ValidationError) {
	for field, msg := range other.Fields() {
		v.add(field, msg)
	}
}

// ConflictError rejects a booking that overlaps existing appointments.
type ConflictError struct {
	Date      string
	StartTime string
	EndTime   string
	Conflicts []Appointment
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s %q %s %s-%s", c.ID, c.Title, c.Date, c.StartTime, c.EndTime))
	}
	return fmt.Sprintf("%s %s-%s overlaps %d appointment(s): %s",
		e.Date, e.StartTime, e.EndTime, len(e.Conflicts), strings.Join(parts, ", "))
}
