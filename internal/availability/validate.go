package availability

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrEmptyRanges       = errors.New("enabled day has no time ranges")
	ErrOverlappingRanges = errors.New("time ranges overlap")
	ErrInvalidRange      = timegrid.ErrInvalidRange
	ErrNotFound          = errors.New("schedule not found")
	ErrForbidden         = errors.New("forbidden: only the provider or an admin may change a schedule")
)

// Validate checks every day entry of t and returns a normalised copy with
// each day's ranges sorted by start. Days are checked in calendar order so
// the reported error is deterministic.
func Validate(t WeeklyTemplate) (WeeklyTemplate, error) {
	out := make(WeeklyTemplate, len(t))

	for _, day := range t.sortedDays() {
		entry := t[day]
		if !day.IsBusinessDay() {
			return nil, fmt.Errorf("%w: %q is not a business day", ErrInvalidDay, string(day))
		}

		for _, r := range entry.Ranges {
			if r.Start >= r.End {
				return nil, fmt.Errorf("%w: %s %s", ErrInvalidRange, day, r)
			}
		}

		if entry.Enabled && len(entry.Ranges) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyRanges, day)
		}

		ranges := cloneRanges(entry.Ranges)
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

		for i := 1; i < len(ranges); i++ {
			if ranges[i-1].overlaps(ranges[i]) {
				return nil, fmt.Errorf("%w: %s %s and %s", ErrOverlappingRanges, day, ranges[i-1], ranges[i])
			}
		}

		out[day] = DaySchedule{Enabled: entry.Enabled, Ranges: ranges}
	}

	return out, nil
}
