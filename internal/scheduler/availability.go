package scheduler

import (
	"errors"

	"github.com/example/appointment-engine/internal/timeutil"
)

// DefaultGranularity is the slot step used when none is configured.
const DefaultGranularity = 15

// ErrInvalidWindow is returned when the scan window is empty or reversed.
var ErrInvalidWindow = errors.New("scheduler: availability window must end after it starts")

// Window bounds an availability scan.
type Window struct {
	StartTime string
	EndTime   string
}

// Slot is one step of an availability scan.
type Slot struct {
	StartTime string
	EndTime   string
	Free      bool
	BlockedBy []string
}

// Availability walks window in steps of granularity minutes and reports, for
// each slot of length granularity, the bookings that block it.
func Availability(date string, window Window, granularity int, existing []Booking) ([]Slot, error) {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	from, err := timeutil.ToMinutes(window.StartTime)
	if err != nil {
		return nil, err
	}
	to, err := timeutil.ToMinutes(window.EndTime)
	if err != nil {
		return nil, err
	}
	if to <= from {
		return nil, ErrInvalidWindow
	}

	slots := make([]Slot, 0, (to-from)/granularity+1)
	for start := from; start < to; start += granularity {
		end := start + granularity
		if end > to {
			end = to
		}
		startText := timeutil.ToTimeString(start)
		conflicts, err := FindConflicts(date, startText, end-start, existing, "")
		if err != nil {
			return nil, err
		}
		slot := Slot{
			StartTime: startText,
			EndTime:   timeutil.ToTimeString(end),
			Free:      len(conflicts) == 0,
		}
		for _, c := range conflicts {
			slot.BlockedBy = append(slot.BlockedBy, c.ID)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
