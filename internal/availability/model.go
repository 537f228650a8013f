package availability

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

// Weekday names a civil-calendar day. Sunday exists only so that it can be
// recognised and rejected: it is never a business day.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// BusinessDays lists the bookable weekdays in calendar order.
var BusinessDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var fromTime = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

func (d Weekday) IsBusinessDay() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday:
		return true
	}
	return false
}

func (d Weekday) order() int {
	for i, b := range BusinessDays {
		if b == d {
			return i
		}
	}
	return len(BusinessDays)
}

// ParseWeekday accepts a case-insensitive English day name. Sunday parses
// successfully; callers decide whether it is acceptable.
func ParseWeekday(s string) (Weekday, error) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if d == Sunday || d.IsBusinessDay() {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// UnmarshalText folds known day names to their canonical form so that
// template keys such as "Monday" decode to Monday. Unknown names are kept
// verbatim and rejected later by Validate.
func (d *Weekday) UnmarshalText(b []byte) error {
	if parsed, err := ParseWeekday(string(b)); err == nil {
		*d = parsed
		return nil
	}
	*d = Weekday(b)
	return nil
}

// WeekdayOf returns the weekday of a calendar date.
func WeekdayOf(t time.Time) Weekday {
	return fromTime[t.Weekday()]
}

// TimeRange is one open interval [Start, End) of provider availability.
type TimeRange struct {
	Start timegrid.TimeOfDay `json:"start"`
	End   timegrid.TimeOfDay `json:"end"`
}

func (r TimeRange) String() string { return r.Start.String() + "-" + r.End.String() }

func (r TimeRange) overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

type DaySchedule struct {
	Enabled bool        `json:"enabled"`
	Ranges  []TimeRange `json:"ranges"`
}

// WeeklyTemplate is a provider's recurring availability keyed by weekday.
// Days absent from the map are not enabled.
type WeeklyTemplate map[Weekday]DaySchedule

// Clone returns a deep copy.
func (t WeeklyTemplate) Clone() WeeklyTemplate {
	if t == nil {
		return nil
	}
	out := make(WeeklyTemplate, len(t))
	for d, s := range t {
		out[d] = DaySchedule{Enabled: s.Enabled, Ranges: cloneRanges(s.Ranges)}
	}
	return out
}

func cloneRanges(in []TimeRange) []TimeRange {
	if in == nil {
		return nil
	}
	out := make([]TimeRange, len(in))
	copy(out, in)
	return out
}

// EnabledDays lists the enabled days in calendar order.
func (t WeeklyTemplate) EnabledDays() []Weekday {
	var out []Weekday
	for _, d := range BusinessDays {
		if t[d].Enabled {
			out = append(out, d)
		}
	}
	return out
}

func (t WeeklyTemplate) sortedDays() []Weekday {
	days := make([]Weekday, 0, len(t))
	for d := range t {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		oi, oj := days[i].order(), days[j].order()
		if oi != oj {
			return oi < oj
		}
		return days[i] < days[j]
	})
	return days
}
