// Package timeutil converts between wall-clock strings and minute offsets and
// classifies calendar days.
//
// Times are local "HH:MM" strings without a timezone and dates are ISO
// "YYYY-MM-DD" strings. Parsed dates are always midnight UTC so day arithmetic
// never crosses a DST boundary.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinutesPerDay is the exclusive upper bound of a same-day minute offset.
	MinutesPerDay = 24 * 60
	// DateLayout is the ISO calendar day layout used across the engine.
	DateLayout = "2006-01-02"
)

// ErrFormat is wrapped by every FormatError.
var ErrFormat = errors.New("timeutil: malformed value")

// FormatError reports a malformed time or date string.
type FormatError struct {
	Kind  string
	Value string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case "date":
		return fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", e.Value)
	default:
		return fmt.Sprintf("invalid time %q: expected HH:MM", e.Value)
	}
}

// Unwrap exposes ErrFormat for errors.Is checks.
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// ToMinutes parses an "HH:MM" string into minutes after midnight. "24:00" is
// accepted as the end-of-day boundary.
func ToMinutes(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(trimmed, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, &FormatError{Kind: "time", Value: value}
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 24 {
		return 0, &FormatError{Kind: "time", Value: value}
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, &FormatError{Kind: "time", Value: value}
	}
	if hours == 24 && minutes != 0 {
		return 0, &FormatError{Kind: "time", Value: value}
	}
	return hours*60 + minutes, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ToTimeString formats a minute offset as zero-padded "HH:MM". Offsets past
// midnight are not wrapped, so 1500 renders as "25:00". Negative offsets
// render as "00:00".
func ToTimeString(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes returns value shifted by duration minutes.
func AddMinutes(value string, duration int) (string, error) {
	start, err := ToMinutes(value)
	if err != nil {
		return "", err
	}
	return ToTimeString(start + duration), nil
}

// ParseDate parses an ISO calendar day.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, &FormatError{Kind: "date", Value: value}
	}
	return parsed, nil
}

// FormatDate renders the calendar day of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsWeekend reports whether date falls on Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// NextBusinessDay returns the first weekday strictly after date.
func NextBusinessDay(date time.Time) time.Time {
	next := date.AddDate(0, 0, 1)
	for IsWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ShiftOffWeekend moves a Saturday or Sunday to the following Monday. The
// boolean reports whether a shift happened.
func ShiftOffWeekend(date time.Time) (time.Time, bool) {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, 2), true
	case time.Sunday:
		return date.AddDate(0, 0, 1), true
	default:
		return date, false
	}
}

// At combines a calendar day and a minute offset into an instant in loc.
func At(date time.Time, minutes int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, minutes, 0, 0, loc)
}
