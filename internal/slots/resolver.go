// Package slots derives bookable slot indices from a provider's weekly
// template and the appointments already holding slots.
package slots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

// TemplateSource is the read side of the weekly availability store.
type TemplateSource interface {
	GetSchedule(ctx context.Context, providerID uuid.UUID) (availability.WeeklyTemplate, error)
}

// OccupancySource reports the slot indices held by non-terminal
// appointments of a provider on a date.
type OccupancySource interface {
	OccupiedSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]int, error)
}

// Day is the resolved availability of one provider weekday.
type Day struct {
	Enabled bool
	Slots   []int
}

// Contains reports whether idx is offered on the day.
func (d Day) Contains(idx int) bool {
	i := sort.SearchInts(d.Slots, idx)
	return i < len(d.Slots) && d.Slots[i] == idx
}

type Resolver struct {
	grid      *timegrid.Grid
	templates TemplateSource
	occupancy OccupancySource
}

func NewResolver(grid *timegrid.Grid, templates TemplateSource, occupancy OccupancySource) *Resolver {
	return &Resolver{grid: grid, templates: templates, occupancy: occupancy}
}

func (r *Resolver) Grid() *timegrid.Grid { return r.grid }

// Resolve computes the offered slots for a weekday. A provider without a
// template, a disabled day and Sunday all resolve to an empty, disabled day.
func (r *Resolver) Resolve(ctx context.Context, providerID uuid.UUID, weekday availability.Weekday) (Day, error) {
	if !weekday.IsBusinessDay() {
		return Day{Slots: []int{}}, nil
	}

	tmpl, err := r.templates.GetSchedule(ctx, providerID)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return Day{Slots: []int{}}, nil
		}
		return Day{}, fmt.Errorf("resolve %s: %w", weekday, err)
	}

	entry, ok := tmpl[weekday]
	if !ok || !entry.Enabled {
		return Day{Slots: []int{}}, nil
	}

	seen := make(map[int]struct{})
	out := []int{}
	for _, rng := range entry.Ranges {
		idxs, err := r.grid.RangeToSlots(rng.Start, rng.End)
		if err != nil {
			return Day{}, fmt.Errorf("resolve %s %s: %w", weekday, rng, err)
		}
		for _, i := range idxs {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			out = append(out, i)
		}
	}
	sort.Ints(out)

	return Day{Enabled: true, Slots: out}, nil
}

// AvailableSlots returns the ordered slot indices inside at least one open
// range of the provider's template for weekday.
func (r *Resolver) AvailableSlots(ctx context.Context, providerID uuid.UUID, weekday availability.Weekday) ([]int, error) {
	day, err := r.Resolve(ctx, providerID, weekday)
	if err != nil {
		return nil, err
	}
	return day.Slots, nil
}

// BookableSlots is AvailableSlots for the weekday of date minus the slots
// held by scheduled or confirmed appointments on that date.
func (r *Resolver) BookableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]int, error) {
	date = availability.DateOf(date)

	available, err := r.AvailableSlots(ctx, providerID, availability.WeekdayOf(date))
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return available, nil
	}

	held, err := r.occupancy.OccupiedSlots(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load occupied slots: %w", err)
	}
	taken := make(map[int]struct{}, len(held))
	for _, i := range held {
		taken[i] = struct{}{}
	}

	out := make([]int, 0, len(available))
	for _, i := range available {
		if _, ok := taken[i]; !ok {
			out = append(out, i)
		}
	}
	return out, nil
}
