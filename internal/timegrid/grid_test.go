package timegrid

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clinicGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid(MustTimeOfDay(9, 0), 30*time.Minute, 17)
	require.NoError(t, err)
	return g
}

func TestNewGrid_Rejects(t *testing.T) {
	_, err := NewGrid(MustTimeOfDay(9, 0), 0, 4)
	assert.ErrorIs(t, err, ErrInvalidGrid)

	_, err = NewGrid(MustTimeOfDay(9, 0), 90*time.Second, 4)
	assert.ErrorIs(t, err, ErrInvalidGrid)

	_, err = NewGrid(MustTimeOfDay(9, 0), 30*time.Minute, 0)
	assert.ErrorIs(t, err, ErrInvalidGrid)

	_, err = NewGrid(MustTimeOfDay(23, 0), time.Hour, 2)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestSlotToRange(t *testing.T) {
	g := clinicGrid(t)

	start, end, err := g.SlotToRange(0)
	require.NoError(t, err)
	assert.Equal(t, "09:00", start.String())
	assert.Equal(t, "09:30", end.String())

	start, end, err = g.SlotToRange(16)
	require.NoError(t, err)
	assert.Equal(t, "17:00", start.String())
	assert.Equal(t, "17:30", end.String())

	_, _, err = g.SlotToRange(17)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, _, err = g.SlotToRange(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSlotAt(t *testing.T) {
	g := clinicGrid(t)

	idx, err := g.SlotAt(MustTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = g.SlotAt(MustTimeOfDay(10, 45))
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	_, err = g.SlotAt(MustTimeOfDay(8, 59))
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = g.SlotAt(MustTimeOfDay(17, 30))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRangeToSlots(t *testing.T) {
	g := clinicGrid(t)

	cases := []struct {
		name       string
		start, end TimeOfDay
		want       []int
	}{
		{"morning", MustTimeOfDay(9, 0), MustTimeOfDay(11, 0), []int{0, 1, 2, 3}},
		{"unaligned start rounds up", MustTimeOfDay(9, 10), MustTimeOfDay(10, 30), []int{1, 2}},
		{"unaligned end drops tail", MustTimeOfDay(9, 0), MustTimeOfDay(10, 10), []int{0, 1}},
		{"too short", MustTimeOfDay(9, 10), MustTimeOfDay(9, 35), []int{}},
		{"before grid", MustTimeOfDay(6, 0), MustTimeOfDay(8, 0), []int{}},
		{"clipped at both ends", MustTimeOfDay(7, 0), MustTimeOfDay(20, 0), []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.RangeToSlots(tc.start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := g.RangeToSlots(MustTimeOfDay(11, 0), MustTimeOfDay(11, 0))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = g.RangeToSlots(MustTimeOfDay(12, 0), MustTimeOfDay(11, 0))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSlots(t *testing.T) {
	g := clinicGrid(t)
	all := g.Slots()
	require.Len(t, all, 17)
	assert.Equal(t, Slot{Index: 4, Start: MustTimeOfDay(11, 0), End: MustTimeOfDay(11, 30)}, all[4])
	assert.Equal(t, "17:30", g.End().String())
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("13:45")
	require.NoError(t, err)
	assert.Equal(t, 13, tod.Hour())
	assert.Equal(t, 45, tod.Minute())

	for _, bad := range []string{"", "9:00", "24:01", "25:00", "12:60", "ab:cd", "12-30"} {
		_, err := ParseTimeOfDay(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestParseTimeOfDay_EndOfDay(t *testing.T) {
	g, err := NewGrid(MustTimeOfDay(16, 0), time.Hour, 8)
	require.NoError(t, err)
	require.Equal(t, "24:00", g.End().String())

	back, err := ParseTimeOfDay(g.End().String())
	require.NoError(t, err)
	assert.Equal(t, g.End(), back)

	slots, err := g.RangeToSlots(MustTimeOfDay(22, 0), back)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 7}, slots)
}

func TestTimeOfDay_JSON(t *testing.T) {
	var v struct {
		At TimeOfDay `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"08:15"}`), &v))
	assert.Equal(t, MustTimeOfDay(8, 15), v.At)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"08:15"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"at":815}`), &v))
}
