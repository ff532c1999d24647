package recurrence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Parallel()

	t.Run("weekly from friday keeps seven day spacing", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-06-14", IsRecurring: true, Pattern: PatternWeekly, Interval: 1, EndCount: 3,
		})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"2024-06-14", "2024-06-21", "2024-06-28"}, dates(got))
		for _, instance := range got {
			assert.False(t, instance.WasRescheduledFromWeekend)
			assert.Empty(t, instance.OriginalDate)
		}
		assert.Equal(t, 3, got[2].Sequence)
	})

	t.Run("weekend dates shift to monday", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-06-14", IsRecurring: true, Pattern: PatternDaily, Interval: 1, EndCount: 4,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-14", "2024-06-17", "2024-06-17", "2024-06-17"}, dates(got))
		assert.Equal(t, "2024-06-15", got[1].OriginalDate)
		assert.True(t, got[1].WasRescheduledFromWeekend)
		assert.Equal(t, "2024-06-16", got[2].OriginalDate)
		assert.Empty(t, got[3].OriginalDate)
		assert.False(t, got[3].WasRescheduledFromWeekend)
	})

	t.Run("end date is inclusive", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-06-10", IsRecurring: true, Pattern: PatternDaily, Interval: 1, EndDate: "2024-06-12",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-12"}, dates(got))
	})

	t.Run("interval multiplies the step", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-01-15", IsRecurring: true, Pattern: PatternMonthly, Interval: 2, EndCount: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-15", "2024-03-15", "2024-05-15"}, dates(got))
	})

	t.Run("yearly", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-06-10", IsRecurring: true, Pattern: PatternYearly, Interval: 1, EndCount: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-10", "2025-06-10"}, dates(got))
	})

	t.Run("monthly from the 31st clamps to the month end", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-01-31", IsRecurring: true, Pattern: PatternMonthly, Interval: 1, EndCount: 6,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-04-01", "2024-04-30", "2024-05-31", "2024-07-01"}, dates(got))
		assert.Equal(t, "2024-03-31", got[2].OriginalDate)
		assert.Equal(t, "2024-06-30", got[5].OriginalDate)
	})

	t.Run("monthly end date counts every month", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-01-31", IsRecurring: true, Pattern: PatternMonthly, Interval: 1, EndDate: "2024-06-30",
		})
		require.NoError(t, err)
		assert.Len(t, got, 6)
	})

	t.Run("monthly from the 30th keeps the 30th after february", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2025-01-30", IsRecurring: true, Pattern: PatternMonthly, Interval: 1, EndCount: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-01-30", "2025-02-28", "2025-03-31"}, dates(got))
		assert.Equal(t, "2025-03-30", got[2].OriginalDate)
	})

	t.Run("yearly from a leap day steps every year", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-02-29", IsRecurring: true, Pattern: PatternYearly, Interval: 1, EndCount: 5,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-02-29", "2025-02-28", "2026-03-02", "2027-03-01", "2028-02-29"}, dates(got))
		assert.Equal(t, "2026-02-28", got[2].OriginalDate)
	})

	t.Run("safety ceiling applies to end dates", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(Template{
			StartDate: "2024-01-01", IsRecurring: true, Pattern: PatternDaily, Interval: 1, EndDate: "2030-01-01",
		})
		require.NoError(t, err)
		assert.Len(t, got, MaxInstances)
	})
}

func TestValidateListsEveryViolation(t *testing.T) {
	t.Parallel()

	err := Validate(Template{
		StartDate: "2024-06-10", IsRecurring: true, Interval: 0, EndDate: "2024-06-01", EndCount: 5000,
	})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))

	fields := vErr.Fields()
	for _, field := range []string{"recurrence_pattern", "recurrence_interval", "recurrence_end", "recurrence_end_count", "recurrence_end_date"} {
		assert.Contains(t, fields, field)
	}
	assert.Len(t, vErr.Violations, 5)
}

func TestValidateRules(t *testing.T) {
	t.Parallel()

	base := Template{StartDate: "2024-06-10", IsRecurring: true, Pattern: PatternDaily, Interval: 1, EndCount: 1}
	require.NoError(t, Validate(base))

	missingEnd := base
	missingEnd.EndCount = 0
	assert.Error(t, Validate(missingEnd))

	sameDay := base
	sameDay.EndCount = 0
	sameDay.EndDate = "2024-06-10"
	assert.Error(t, Validate(sameDay))

	tooWide := base
	tooWide.Interval = 366
	assert.Error(t, Validate(tooWide))

	notRecurring := base
	notRecurring.IsRecurring = false
	assert.Error(t, Validate(notRecurring))

	badDate := base
	badDate.StartDate = "June 10"
	assert.Error(t, Validate(badDate))
}

func TestParsePattern(t *testing.T) {
	t.Parallel()

	p, err := ParsePattern("Weekly")
	require.NoError(t, err)
	assert.Equal(t, PatternWeekly, p)
	assert.Equal(t, "weekly", p.String())

	_, err = ParsePattern("hourly")
	assert.Error(t, err)
}

func dates(instances []Instance) []string {
	out := make([]string, 0, len(instances))
	for _, instance := range instances {
		out = append(out, instance.Date)
	}
	return out
}
