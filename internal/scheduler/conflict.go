package scheduler

import (
	"fmt"
	"sort"

	"github.com/example/appointment-engine/internal/timeutil"
)

// Booking is the slice of an appointment the detector needs.
type Booking struct {
	ID              string
	Title           string
	Date            string
	StartTime       string
	DurationMinutes int
	IsPomodoro      bool
	Cancelled       bool
}

// Interval is a half-open [Start, End) span in minutes after midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open intervals intersect. Touching
// boundaries do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}

// String renders the interval as "HH:MM-HH:MM".
func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", timeutil.ToTimeString(i.Start), timeutil.ToTimeString(i.End))
}

// IntervalOf converts a start time and duration into minutes.
func IntervalOf(startTime string, durationMinutes int) (Interval, error) {
	start, err := timeutil.ToMinutes(startTime)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start + durationMinutes}, nil
}

// Interval returns the booking's span in minutes.
func (b Booking) Interval() (Interval, error) {
	return IntervalOf(b.StartTime, b.DurationMinutes)
}

// FindConflicts returns the bookings on date whose interval overlaps the
// candidate [startTime, startTime+durationMinutes). Cancelled bookings,
// companion breaks and the booking identified by excludeID are ignored. The
// result is ordered by start time.
func FindConflicts(date, startTime string, durationMinutes int, existing []Booking, excludeID string) ([]Booking, error) {
	candidate, err := IntervalOf(startTime, durationMinutes)
	if err != nil {
		return nil, err
	}

	type hit struct {
		booking  Booking
		interval Interval
	}
	hits := make([]hit, 0)
	for _, booking := range existing {
		if booking.Date != date || booking.Cancelled || booking.IsPomodoro {
			continue
		}
		if excludeID != "" && booking.ID == excludeID {
			continue
		}
		span, err := booking.Interval()
		if err != nil {
			return nil, fmt.Errorf("booking %s: %w", booking.ID, err)
		}
		if candidate.Overlaps(span) {
			hits = append(hits, hit{booking: booking, interval: span})
		}
	}

	if len(hits) == 0 {
		return nil, nil
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].interval.Start == hits[j].interval.Start {
			return hits[i].booking.ID < hits[j].booking.ID
		}
		return hits[i].interval.Start < hits[j].interval.Start
	})

	conflicts := make([]Booking, 0, len(hits))
	for _, h := range hits {
		conflicts = append(conflicts, h.booking)
	}
	return conflicts, nil
}
