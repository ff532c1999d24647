package workschedule

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source resolves the weekly rules of a user.
type Source interface {
	RulesFor(ctx context.Context, userID string) (Week, error)
}

// StaticSource serves one week to every user.
type StaticSource struct {
	Week Week
}

// RulesFor implements Source.
func (s StaticSource) RulesFor(context.Context, string) (Week, error) {
	return s.Week.Clone(), nil
}

// File is a rule file with a default week and per-user overrides.
type File struct {
	Default Week
	Users   map[string]Week
}

type fileDocument struct {
	Default map[string][]Rule            `yaml:"default"`
	Users   map[string]map[string][]Rule `yaml:"users"`
}

// LoadFile reads and parses a YAML rule file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workschedule: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML rule document. Weekday keys are English day names.
func Parse(data []byte) (*File, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("workschedule: decode: %w", err)
	}

	def, err := toWeek(doc.Default)
	if err != nil {
		return nil, err
	}
	file := &File{Default: def, Users: make(map[string]Week, len(doc.Users))}
	for user, days := range doc.Users {
		week, err := toWeek(days)
		if err != nil {
			return nil, fmt.Errorf("workschedule: user %s: %w", user, err)
		}
		file.Users[user] = week
	}
	return file, nil
}

// RulesFor returns the user's override week, or the default week.
func (f *File) RulesFor(_ context.Context, userID string) (Week, error) {
	if f == nil {
		return nil, nil
	}
	if week, ok := f.Users[userID]; ok && userID != "" {
		return week.Clone(), nil
	}
	return f.Default.Clone(), nil
}

func toWeek(days map[string][]Rule) (Week, error) {
	week := make(Week, len(days))
	for name, rules := range days {
		day, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		for i, rule := range rules {
			if _, _, err := rule.bounds(); err != nil {
				return nil, fmt.Errorf("%s rule %d: %w", name, i+1, err)
			}
			if rule.Type == 0 {
				return nil, fmt.Errorf("%s rule %d: type is required", name, i+1)
			}
		}
		week[day] = append([]Rule(nil), rules...)
	}
	return week, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for day := time.Sunday; day <= time.Saturday; day++ {
		full := strings.ToLower(day.String())
		if lower == full || lower == full[:3] {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
