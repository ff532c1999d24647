package workschedule

import (
	"fmt"

	"github.com/example/appointment-engine/internal/scheduler"
	"github.com/example/appointment-engine/internal/timeutil"
)

// Reason explains an invalid verdict.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonNoSchedule
	ReasonWeekend
	ReasonLunchBreak
	ReasonUnavailable
	ReasonOutsideHours
)

// String returns the wire name of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNoSchedule:
		return "no_schedule"
	case ReasonWeekend:
		return "weekend"
	case ReasonLunchBreak:
		return "lunch_break"
	case ReasonUnavailable:
		return "unavailable"
	case ReasonOutsideHours:
		return "outside_hours"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Verdict is the advisory outcome of Validate.
type Verdict struct {
	Valid         bool   `json:"valid"`
	Overtime      bool   `json:"overtime"`
	Reason        Reason `json:"reason,omitempty"`
	Message       string `json:"message,omitempty"`
	SuggestedDate string `json:"suggested_date,omitempty"`
	SuggestedTime string `json:"suggested_time,omitempty"`
}

// Validate classifies [startTime, startTime+durationMinutes) on date against
// rules. The first overlapping rule, in stored order, decides the verdict.
func Validate(date, startTime string, durationMinutes int, rules Week) (Verdict, error) {
	day, err := timeutil.ParseDate(date)
	if err != nil {
		return Verdict{}, err
	}
	candidate, err := scheduler.IntervalOf(startTime, durationMinutes)
	if err != nil {
		return Verdict{}, err
	}

	dayRules := rules[day.Weekday()]
	if len(dayRules) == 0 {
		return Verdict{
			Reason:  ReasonNoSchedule,
			Message: fmt.Sprintf("no work schedule is defined for %s", day.Weekday()),
		}, nil
	}

	for _, rule := range dayRules {
		if rule.Type == RuleUnavailable && rule.spansWholeDay() {
			return Verdict{
				Reason:        ReasonWeekend,
				Message:       fmt.Sprintf("%s is not a working day", day.Weekday()),
				SuggestedDate: timeutil.FormatDate(timeutil.NextBusinessDay(day)),
			}, nil
		}
	}

	for _, rule := range dayRules {
		start, end, err := rule.bounds()
		if err != nil {
			return Verdict{}, fmt.Errorf("rule %s-%s: %w", rule.StartTime, rule.EndTime, err)
		}
		if !candidate.Overlaps(scheduler.Interval{Start: start, End: end}) {
			continue
		}

		switch rule.Type {
		case RuleLunch:
			if rule.IsWorkingTime {
				continue
			}
			return Verdict{
				Reason:        ReasonLunchBreak,
				Message:       fmt.Sprintf("overlaps the lunch break %s-%s", rule.StartTime, rule.EndTime),
				SuggestedTime: timeutil.ToTimeString(end),
			}, nil
		case RuleWork:
			if rule.IsWorkingTime {
				return Verdict{Valid: true}, nil
			}
			if rule.AllowOverlap {
				return Verdict{
					Valid:    true,
					Overtime: true,
					Message:  fmt.Sprintf("falls in the overtime window %s-%s", rule.StartTime, rule.EndTime),
				}, nil
			}
		case RuleUnavailable:
			return Verdict{
				Reason:        ReasonUnavailable,
				Message:       fmt.Sprintf("overlaps the unavailable period %s-%s", rule.StartTime, rule.EndTime),
				SuggestedTime: timeutil.ToTimeString(end),
			}, nil
		default:
			return Verdict{}, fmt.Errorf("workschedule: unknown rule type %d", uint8(rule.Type))
		}
	}

	return Verdict{
		Reason:  ReasonOutsideHours,
		Message: "outside of working hours",
	}, nil
}
