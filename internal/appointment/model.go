package appointment

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-scheduling/internal/availability"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// IsActive reports whether an appointment in s holds its slot.
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

type Appointment struct {
	ID              uuid.UUID            `json:"id"`
	ProviderID      uuid.UUID            `json:"provider_id"`
	PatientID       uuid.UUID            `json:"patient_id"`
	Date            time.Time            `json:"date"`
	Weekday         availability.Weekday `json:"weekday"`
	SlotIndex       int                  `json:"slot_index"`
	Reason          string               `json:"reason"`
	Status          Status               `json:"status"`
	RescheduledFrom *uuid.UUID           `json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func (a Appointment) Key() Key {
	return Key{ProviderID: a.ProviderID, Date: a.Date, SlotIndex: a.SlotIndex}
}

// Key identifies one bookable slot occurrence. At most one active
// appointment exists per key.
type Key struct {
	ProviderID uuid.UUID
	Date       time.Time
	SlotIndex  int
}

func (k Key) String() string {
	return k.ProviderID.String() + ":" + k.Date.Format(availability.DateLayout) + ":" + strconv.Itoa(k.SlotIndex)
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Filter narrows a listing. A nil Status matches every status.
type Filter struct {
	Status *Status
	Limit  int
	Offset int
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f Filter) matches(a Appointment) bool {
	return f.Status == nil || *f.Status == a.Status
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
