package recurrence

import "strings"

// Violation names one failed template rule.
type Violation struct {
	Field   string
	Message string
}

// ValidationError lists every violated template rule.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.Violations) == 0 {
		return "recurrence: invalid template"
	}
	parts := make([]string, 0, len(v.Violations))
	for _, violation := range v.Violations {
		parts = append(parts, violation.Field+": "+violation.Message)
	}
	return "recurrence: invalid template: " + strings.Join(parts, "; ")
}

// HasViolations reports whether any rule was violated.
func (v *ValidationError) HasViolations() bool {
	return v != nil && len(v.Violations) > 0
}

// Fields returns the violations keyed by field, joining repeated fields.
func (v *ValidationError) Fields() map[string]string {
	if v == nil {
		return nil
	}
	out := make(map[string]string, len(v.Violations))
	for _, violation := range v.Violations {
		if existing, ok := out[violation.Field]; ok {
			out[violation.Field] = existing + "; " + violation.Message
			continue
		}
		out[violation.Field] = violation.Message
	}
	return out
}

func (v *ValidationError) add(field, message string) {
	v.Violations = append(v.Violations, Violation{Field: field, Message: message})
}
