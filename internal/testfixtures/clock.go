package testfixtures

import (
	"sync"
	"time"

	"github.com/example/appointment-engine/internal/timeutil"
)

// Clock is a controllable time source. Appointment services read it through
// NowFunc, so moving the clock past a booking's start or SLA deadline is how
// tests drive timers, the sweep and the delayed view.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialised to start, or to ReferenceTime when
// start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// ClockAt returns a UTC clock reading the wall-clock time hhmm on date.
// It panics on malformed input.
func ClockAt(date, hhmm string) *Clock {
	c := &Clock{}
	c.SetWallClock(date, hhmm)
	return c
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for injection. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// SetWallClock moves the clock to hhmm on date in UTC, the location services
// built by ServiceFactory use.
func (c *Clock) SetWallClock(date, hhmm string) {
	day, err := timeutil.ParseDate(date)
	if err != nil {
		panic(err)
	}
	minutes, err := timeutil.ToMinutes(hhmm)
	if err != nil {
		panic(err)
	}
	c.Set(timeutil.At(day, minutes, time.UTC))
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
