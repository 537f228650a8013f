// Package seeddata generates realistic provider availability for local
// environments and load simulation.
package seeddata

import (
	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

var reasons = []string{
	"Annual physical",
	"Follow-up visit",
	"Blood pressure check",
	"Medication review",
	"Lab results discussion",
	"Persistent cough",
	"Back pain",
	"Skin rash",
	"Vaccination",
	"Pre-operative assessment",
}

// Template builds a valid weekly template on the half hour: a morning block
// and, on some days, an afternoon block after a lunch break. Every
// business day is present; some are disabled.
func Template(f *gofakeit.Faker) availability.WeeklyTemplate {
	t := make(availability.WeeklyTemplate, len(availability.BusinessDays))

	for _, day := range availability.BusinessDays {
		if day == availability.Saturday && f.Bool() {
			t[day] = availability.DaySchedule{Enabled: false, Ranges: []availability.TimeRange{}}
			continue
		}
		if f.Number(0, 9) == 0 {
			t[day] = availability.DaySchedule{Enabled: false, Ranges: []availability.TimeRange{}}
			continue
		}

		// morning: starts 09:00-10:00, lasts 1.5-3h, ends by 13:00
		mStart := 9*60 + 30*f.Number(0, 2)
		mEnd := mStart + 30*f.Number(3, 6)
		if mEnd > 13*60 {
			mEnd = 13 * 60
		}
		ranges := []availability.TimeRange{halfHours(mStart, mEnd)}

		if day != availability.Saturday && f.Bool() {
			// afternoon: starts 14:00-15:00, ends by 17:30
			aStart := 14*60 + 30*f.Number(0, 2)
			aEnd := aStart + 30*f.Number(2, 5)
			if aEnd > 17*60+30 {
				aEnd = 17*60 + 30
			}
			ranges = append(ranges, halfHours(aStart, aEnd))
		}

		t[day] = availability.DaySchedule{Enabled: true, Ranges: ranges}
	}

	return t
}

func halfHours(start, end int) availability.TimeRange {
	return availability.TimeRange{
		Start: timegrid.MustTimeOfDay(start/60, start%60),
		End:   timegrid.MustTimeOfDay(end/60, end%60),
	}
}

// Reason returns a plausible visit reason.
func Reason(f *gofakeit.Faker) string {
	return reasons[f.Number(0, len(reasons)-1)]
}
