package availability

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DateOf strips the clock from t, keeping its calendar date in t's location,
// and returns that date at midnight UTC. Appointments are keyed by this
// value.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidDay, s)
	}
	return t, nil
}
