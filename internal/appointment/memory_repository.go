package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger keeps appointments in process. A single mutex makes each
// method one atomic step, which is what the conditional writes of PgLedger
// give the Postgres driver.
type MemoryLedger struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Appointment
	active map[Key]uuid.UUID
	events []EventLog
	now    func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byID:   make(map[uuid.UUID]*Appointment),
		active: make(map[Key]uuid.UUID),
		now:    time.Now,
	}
}

func (l *MemoryLedger) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.insertLocked(a)
}

func (l *MemoryLedger) insertLocked(a Appointment) (*Appointment, error) {
	if _, taken := l.active[a.Key()]; taken {
		return nil, ErrSlotTaken
	}

	now := l.now()
	a.Status = StatusScheduled
	a.CreatedAt = now
	a.UpdatedAt = now

	stored := a
	l.byID[a.ID] = &stored
	l.active[a.Key()] = a.ID
	return &a, nil
}

func (l *MemoryLedger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (l *MemoryLedger) Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.transitionLocked(id, from, to)
}

func (l *MemoryLedger) transitionLocked(id uuid.UUID, from, to Status) (*Appointment, error) {
	a, ok := l.byID[id]
	if !ok || a.Status != from {
		return nil, ErrNotFound
	}

	a.Status = to
	a.UpdatedAt = l.now()
	if !to.IsActive() {
		delete(l.active, a.Key())
	}
	cp := *a
	return &cp, nil
}

func (l *MemoryLedger) Reschedule(ctx context.Context, old uuid.UUID, from Status, next Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.byID[old]
	if !ok || cur.Status != from {
		return nil, ErrNotFound
	}
	if holder, taken := l.active[next.Key()]; taken && holder != old {
		return nil, ErrSlotTaken
	}

	if _, err := l.transitionLocked(old, from, StatusCancelled); err != nil {
		return nil, err
	}
	return l.insertLocked(next)
}

func (l *MemoryLedger) OccupiedSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []int{}
	for k := range l.active {
		if k.ProviderID == providerID && k.Date.Equal(date) {
			out = append(out, k.SlotIndex)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (l *MemoryLedger) ListByProvider(ctx context.Context, providerID uuid.UUID, f Filter) ([]Appointment, error) {
	return l.list(func(a *Appointment) bool { return a.ProviderID == providerID }, f), nil
}

func (l *MemoryLedger) ListByPatient(ctx context.Context, patientID uuid.UUID, f Filter) ([]Appointment, error) {
	return l.list(func(a *Appointment) bool { return a.PatientID == patientID }, f), nil
}

func (l *MemoryLedger) list(owned func(*Appointment) bool, f Filter) []Appointment {
	f = f.normalized()

	l.mu.RLock()
	matched := []Appointment{}
	for _, a := range l.byID {
		if owned(a) && f.matches(*a) {
			matched = append(matched, *a)
		}
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.SlotIndex != b.SlotIndex {
			return a.SlotIndex > b.SlotIndex
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if f.Offset >= len(matched) {
		return []Appointment{}
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end]
}

func (l *MemoryLedger) FindLapsed(ctx context.Context, before time.Time) ([]Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []Appointment{}
	for _, a := range l.byID {
		if a.Status == StatusScheduled && a.Date.Before(before) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (l *MemoryLedger) InsertEvent(ctx context.Context, ev EventLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.ID = int64(len(l.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.now()
	}
	l.events = append(l.events, ev)
	return nil
}

// Events returns the recorded event log, oldest first.
func (l *MemoryLedger) Events() []EventLog {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]EventLog, len(l.events))
	copy(out, l.events)
	return out
}
