package availability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

func tr(sh, sm, eh, em int) TimeRange {
	return TimeRange{Start: timegrid.MustTimeOfDay(sh, sm), End: timegrid.MustTimeOfDay(eh, em)}
}

func TestValidate_OK(t *testing.T) {
	in := WeeklyTemplate{
		Monday:  {Enabled: true, Ranges: []TimeRange{tr(14, 0, 16, 0), tr(9, 0, 11, 0)}},
		Tuesday: {Enabled: false},
		Friday:  {Enabled: true, Ranges: []TimeRange{tr(9, 0, 10, 0), tr(10, 0, 12, 0)}},
	}

	out, err := Validate(in)
	require.NoError(t, err)

	// ranges come back sorted, input untouched
	assert.Equal(t, []TimeRange{tr(9, 0, 11, 0), tr(14, 0, 16, 0)}, out[Monday].Ranges)
	assert.Equal(t, tr(14, 0, 16, 0), in[Monday].Ranges[0])
	assert.Nil(t, out[Tuesday].Ranges)
	assert.Equal(t, []Weekday{Monday, Friday}, out.EnabledDays())
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   WeeklyTemplate
		want error
	}{
		{"sunday enabled", WeeklyTemplate{Sunday: {Enabled: true, Ranges: []TimeRange{tr(9, 0, 10, 0)}}}, ErrInvalidDay},
		{"sunday disabled", WeeklyTemplate{Sunday: {Enabled: false}}, ErrInvalidDay},
		{"unknown day", WeeklyTemplate{Weekday("funday"): {Enabled: false}}, ErrInvalidDay},
		{"empty ranges", WeeklyTemplate{Monday: {Enabled: true}}, ErrEmptyRanges},
		{"inverted range", WeeklyTemplate{Monday: {Enabled: true, Ranges: []TimeRange{tr(11, 0, 9, 0)}}}, ErrInvalidRange},
		{"zero-length range", WeeklyTemplate{Monday: {Enabled: true, Ranges: []TimeRange{tr(9, 0, 9, 0)}}}, ErrInvalidRange},
		{"inverted range on disabled day", WeeklyTemplate{Monday: {Enabled: false, Ranges: []TimeRange{tr(11, 0, 9, 0)}}}, ErrInvalidRange},
		{"overlap", WeeklyTemplate{Wednesday: {Enabled: true, Ranges: []TimeRange{tr(9, 0, 11, 0), tr(10, 30, 12, 0)}}}, ErrOverlappingRanges},
		{"contained", WeeklyTemplate{Wednesday: {Enabled: true, Ranges: []TimeRange{tr(9, 0, 17, 0), tr(12, 0, 13, 0)}}}, ErrOverlappingRanges},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Monday")
	require.NoError(t, err)
	assert.Equal(t, Monday, d)

	d, err = ParseWeekday("sunday")
	require.NoError(t, err)
	assert.False(t, d.IsBusinessDay())

	_, err = ParseWeekday("someday")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestWeeklyTemplate_DecodesCapitalizedDays(t *testing.T) {
	var tmpl WeeklyTemplate
	require.NoError(t, json.Unmarshal([]byte(`{
		"Monday":   {"enabled": true, "ranges": [{"start": "09:00", "end": "11:00"}]},
		" FRIDAY ": {"enabled": false, "ranges": []}
	}`), &tmpl))

	out, err := Validate(tmpl)
	require.NoError(t, err)
	assert.Equal(t, []TimeRange{tr(9, 0, 11, 0)}, out[Monday].Ranges)
	assert.Contains(t, out, Friday)

	require.NoError(t, json.Unmarshal([]byte(`{"Sunday": {"enabled": false}}`), &tmpl))
	_, err = Validate(tmpl)
	assert.ErrorIs(t, err, ErrInvalidDay)

	var unknown WeeklyTemplate
	require.NoError(t, json.Unmarshal([]byte(`{"Funday": {"enabled": false}}`), &unknown))
	_, err = Validate(unknown)
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestWeekdayOf(t *testing.T) {
	assert.Equal(t, Monday, WeekdayOf(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Sunday, WeekdayOf(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)))
}
