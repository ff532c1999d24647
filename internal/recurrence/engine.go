package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/appointment-engine/internal/timeutil"
)

const (
	// MaxInstances caps every expansion regardless of its end condition.
	MaxInstances = 1000
	// MaxInterval is the largest accepted step multiplier.
	MaxInterval = 365
)

// Pattern is the step unit of a recurring template.
type Pattern uint8

const (
	PatternNone Pattern = iota
	PatternDaily
	PatternWeekly
	PatternMonthly
	PatternYearly
)

// String returns the wire name of the pattern.
func (p Pattern) String() string {
	switch p {
	case PatternDaily:
		return "daily"
	case PatternWeekly:
		return "weekly"
	case PatternMonthly:
		return "monthly"
	case PatternYearly:
		return "yearly"
	default:
		return ""
	}
}

// ParsePattern maps a wire name onto a Pattern. The empty string yields
// PatternNone.
func ParsePattern(value string) (Pattern, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return PatternNone, nil
	case "daily":
		return PatternDaily, nil
	case "weekly":
		return PatternWeekly, nil
	case "monthly":
		return PatternMonthly, nil
	case "yearly":
		return PatternYearly, nil
	default:
		return PatternNone, fmt.Errorf("recurrence: unknown pattern %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := ParsePattern(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Pattern) frequency() (rrule.Frequency, bool) {
	switch p {
	case PatternDaily:
		return rrule.DAILY, true
	case PatternWeekly:
		return rrule.WEEKLY, true
	case PatternMonthly:
		return rrule.MONTHLY, true
	case PatternYearly:
		return rrule.YEARLY, true
	default:
		return 0, false
	}
}

// Template carries the scheduling half of a recurring appointment. EndDate and
// EndCount are mutually exclusive; zero values mean unset.
type Template struct {
	StartDate   string
	IsRecurring bool
	Pattern     Pattern
	Interval    int
	EndDate     string
	EndCount    int
}

// Instance is one concrete date produced by Expand.
type Instance struct {
	Sequence                  int
	Date                      string
	OriginalDate              string
	WasRescheduledFromWeekend bool
}

// Validate reports every rule the template violates.
func Validate(t Template) error {
	vErr := &ValidationError{}

	start, startErr := timeutil.ParseDate(t.StartDate)
	if startErr != nil {
		vErr.add("date", "start date must be a valid YYYY-MM-DD date")
	}

	if !t.IsRecurring {
		vErr.add("is_recurring", "template must be marked as recurring")
	}
	if _, ok := t.Pattern.frequency(); !ok {
		vErr.add("recurrence_pattern", "pattern must be one of daily, weekly, monthly, yearly")
	}
	if t.Interval < 1 || t.Interval > MaxInterval {
		vErr.add("recurrence_interval", fmt.Sprintf("interval must be between 1 and %d", MaxInterval))
	}

	hasEndDate := strings.TrimSpace(t.EndDate) != ""
	hasEndCount := t.EndCount != 0
	switch {
	case hasEndDate && hasEndCount:
		vErr.add("recurrence_end", "set either an end date or an end count, not both")
	case !hasEndDate && !hasEndCount:
		vErr.add("recurrence_end", "an end date or an end count is required")
	}

	if hasEndCount && (t.EndCount < 1 || t.EndCount > MaxInstances) {
		vErr.add("recurrence_end_count", fmt.Sprintf("end count must be between 1 and %d", MaxInstances))
	}
	if hasEndDate {
		end, err := timeutil.ParseDate(t.EndDate)
		switch {
		case err != nil:
			vErr.add("recurrence_end_date", "end date must be a valid YYYY-MM-DD date")
		case startErr == nil && !end.After(start):
			vErr.add("recurrence_end_date", "end date must be after the start date")
		}
	}

	if vErr.HasViolations() {
		return vErr
	}
	return nil
}

// Expand produces the ordered instance dates of t. Steps are taken from the
// unshifted dates; a weekend date is moved to the following Monday and the
// computed date is kept in OriginalDate.
func Expand(t Template) ([]Instance, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}

	start, _ := timeutil.ParseDate(t.StartDate)
	freq, _ := t.Pattern.frequency()

	opts := rrule.ROption{
		Freq:     freq,
		Interval: t.Interval,
		Dtstart:  start,
	}
	clampToMonthEnd(&opts, t.Pattern, start)
	limit := MaxInstances
	if t.EndCount > 0 {
		opts.Count = t.EndCount
		limit = t.EndCount
	} else {
		until, _ := timeutil.ParseDate(t.EndDate)
		opts.Until = until
	}

	rule, err := rrule.NewRRule(opts)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}

	instances := make([]Instance, 0)
	next := rule.Iterator()
	for len(instances) < limit {
		computed, ok := next()
		if !ok {
			break
		}
		instance := Instance{Sequence: len(instances) + 1, Date: timeutil.FormatDate(computed)}
		if shifted, moved := timeutil.ShiftOffWeekend(computed); moved {
			instance.Date = timeutil.FormatDate(shifted)
			instance.OriginalDate = timeutil.FormatDate(computed)
			instance.WasRescheduledFromWeekend = true
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// clampToMonthEnd keeps one instance per monthly or yearly step when the start
// day does not exist in every month: the 31st lands on the 30th or on the last
// day of February, and February 29th lands on the 28th outside leap years.
func clampToMonthEnd(opts *rrule.ROption, pattern Pattern, start time.Time) {
	if start.Day() <= 28 {
		return
	}
	switch pattern {
	case PatternMonthly:
	case PatternYearly:
		opts.Bymonth = []int{int(start.Month())}
	default:
		return
	}
	opts.Bymonthday = []int{start.Day(), -1}
	opts.Bysetpos = []int{1}
}
