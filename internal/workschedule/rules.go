// Package workschedule classifies proposed bookings against a weekly set of
// work, lunch and unavailability rules.
package workschedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/appointment-engine/internal/timeutil"
)

// RuleType is the closed set of rule kinds.
type RuleType uint8

const (
	RuleWork RuleType = iota + 1
	RuleLunch
	RuleUnavailable
)

// String returns the wire name of the rule type.
func (t RuleType) String() string {
	switch t {
	case RuleWork:
		return "work"
	case RuleLunch:
		return "lunch"
	case RuleUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("RuleType(%d)", uint8(t))
	}
}

// ParseRuleType maps a wire name onto a RuleType.
func ParseRuleType(value string) (RuleType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "work":
		return RuleWork, nil
	case "lunch":
		return RuleLunch, nil
	case "unavailable":
		return RuleUnavailable, nil
	default:
		return 0, fmt.Errorf("workschedule: unknown rule type %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t RuleType) MarshalText() ([]byte, error) {
	switch t {
	case RuleWork, RuleLunch, RuleUnavailable:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("workschedule: invalid rule type %d", uint8(t))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *RuleType) UnmarshalText(text []byte) error {
	parsed, err := ParseRuleType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Rule is one span of a weekday.
type Rule struct {
	StartTime     string   `json:"start_time" yaml:"start"`
	EndTime       string   `json:"end_time" yaml:"end"`
	Type          RuleType `json:"rule_type" yaml:"type"`
	IsWorkingTime bool     `json:"is_working_time" yaml:"working"`
	AllowOverlap  bool     `json:"allow_overlap" yaml:"allow_overlap"`
}

func (r Rule) bounds() (int, int, error) {
	start, err := timeutil.ToMinutes(r.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := timeutil.ToMinutes(r.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (r Rule) spansWholeDay() bool {
	start, end, err := r.bounds()
	if err != nil {
		return false
	}
	return start == 0 && end >= timeutil.MinutesPerDay-1
}

// Week holds the ordered rules of each weekday.
type Week map[time.Weekday][]Rule

// Clone returns a deep copy of the week.
func (w Week) Clone() Week {
	if w == nil {
		return nil
	}
	out := make(Week, len(w))
	for day, rules := range w {
		out[day] = append([]Rule(nil), rules...)
	}
	return out
}

// WorkingWindow returns the earliest start and latest end among the work
// rules of weekday, used to bound availability scans.
func (w Week) WorkingWindow(day time.Weekday) (string, string, bool) {
	first, last := -1, -1
	for _, rule := range w[day] {
		if rule.Type != RuleWork {
			continue
		}
		start, end, err := rule.bounds()
		if err != nil {
			continue
		}
		if first < 0 || start < first {
			first = start
		}
		if end > last {
			last = end
		}
	}
	if first < 0 || last <= first {
		return "", "", false
	}
	return timeutil.ToTimeString(first), timeutil.ToTimeString(last), true
}

// DefaultWeek is used when no rule file is configured: weekdays 09:00-18:00
// with a lunch hour and a fit-in overtime window, weekends unavailable.
func DefaultWeek() Week {
	weekday := []Rule{
		{StartTime: "09:00", EndTime: "12:00", Type: RuleWork, IsWorkingTime: true},
		{StartTime: "12:00", EndTime: "13:00", Type: RuleLunch},
		{StartTime: "13:00", EndTime: "18:00", Type: RuleWork, IsWorkingTime: true},
		{StartTime: "18:00", EndTime: "21:00", Type: RuleWork, AllowOverlap: true},
	}
	weekend := []Rule{{StartTime: "00:00", EndTime: "24:00", Type: RuleUnavailable}}

	week := Week{
		time.Saturday: weekend,
		time.Sunday:   append([]Rule(nil), weekend...),
	}
	for _, day := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		week[day] = append([]Rule(nil), weekday...)
	}
	return week
}
