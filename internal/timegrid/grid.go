package timegrid

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOutOfRange   = errors.New("slot index out of range")
	ErrInvalidRange = errors.New("invalid time range")
	ErrInvalidTime  = errors.New("invalid time of day")
	ErrInvalidGrid  = errors.New("invalid grid configuration")
)

// Grid is the fixed, ordered set of bookable intervals of a day. Slot i
// covers [start + i*width, start + (i+1)*width). A Grid is immutable once
// built and safe for concurrent use.
type Grid struct {
	start TimeOfDay
	width int // minutes
	count int
}

// Slot is one grid interval with its display bounds.
type Slot struct {
	Index int       `json:"index"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewGrid builds a grid of count slots of the given width starting at start.
// The grid must fit inside a single day.
func NewGrid(start TimeOfDay, width time.Duration, count int) (*Grid, error) {
	if width <= 0 || width%time.Minute != 0 {
		return nil, fmt.Errorf("%w: slot width %s", ErrInvalidGrid, width)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: slot count %d", ErrInvalidGrid, count)
	}
	w := int(width / time.Minute)
	if int(start)+w*count > minutesPerDay {
		return nil, fmt.Errorf("%w: %d slots of %s from %s overrun the day", ErrInvalidGrid, count, width, start)
	}
	return &Grid{start: start, width: w, count: count}, nil
}

// Len is the number of slots N; valid indices are [0, N).
func (g *Grid) Len() int { return g.count }

func (g *Grid) Width() time.Duration { return time.Duration(g.width) * time.Minute }

// Start is the beginning of slot 0.
func (g *Grid) Start() TimeOfDay { return g.start }

// End is the end of the last slot.
func (g *Grid) End() TimeOfDay { return g.start + TimeOfDay(g.width*g.count) }

// SlotToRange maps an index to its [start, end) bounds.
func (g *Grid) SlotToRange(idx int) (TimeOfDay, TimeOfDay, error) {
	if idx < 0 || idx >= g.count {
		return 0, 0, fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, idx, g.count)
	}
	s := g.start + TimeOfDay(idx*g.width)
	return s, s + TimeOfDay(g.width), nil
}

// SlotAt returns the index of the slot containing t. Times outside the
// hours covered by the grid fail with ErrOutOfRange.
func (g *Grid) SlotAt(t TimeOfDay) (int, error) {
	if t < g.start || t >= g.End() {
		return 0, fmt.Errorf("%w: %s outside %s-%s", ErrOutOfRange, t, g.start, g.End())
	}
	return int(t-g.start) / g.width, nil
}

// RangeToSlots returns, in ascending order, the indices of every slot fully
// contained in [start, end). The result is empty when no slot fits.
func (g *Grid) RangeToSlots(start, end TimeOfDay) ([]int, error) {
	if start >= end {
		return nil, fmt.Errorf("%w: %s-%s", ErrInvalidRange, start, end)
	}

	first := 0
	if start > g.start {
		// round up to the next slot boundary
		first = (int(start-g.start) + g.width - 1) / g.width
	}

	out := []int{}
	for i := first; i < g.count; i++ {
		s := g.start + TimeOfDay(i*g.width)
		if s+TimeOfDay(g.width) > end {
			break
		}
		out = append(out, i)
	}
	return out, nil
}

// Slots lists the whole grid for rendering.
func (g *Grid) Slots() []Slot {
	out := make([]Slot, 0, g.count)
	for i := 0; i < g.count; i++ {
		s := g.start + TimeOfDay(i*g.width)
		out = append(out, Slot{Index: i, Start: s, End: s + TimeOfDay(g.width)})
	}
	return out
}
