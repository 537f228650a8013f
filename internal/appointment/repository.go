package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger is the authoritative appointment store. Only the Engine writes to
// it.
type Ledger interface {
	// Insert stores a new active appointment, or fails with ErrSlotTaken if
	// its key is already held.
	Insert(ctx context.Context, a Appointment) (*Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Transition moves id from one status to another only if it is still in
	// from. It returns ErrNotFound when no row matched.
	Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Reschedule cancels old (still in from) and inserts next as a single
	// unit. Neither change is visible unless both succeed.
	Reschedule(ctx context.Context, old uuid.UUID, from Status, next Appointment) (*Appointment, error)

	OccupiedSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]int, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, f Filter) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, f Filter) ([]Appointment, error)

	// FindLapsed returns scheduled appointments dated before the given day.
	FindLapsed(ctx context.Context, before time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
