package appointment

import (
	"errors"
	"fmt"

	"github.com/hackgods/provider-scheduling/internal/availability"
)

var (
	ErrInvalidDay        = availability.ErrInvalidDay
	ErrSlotNotOffered    = errors.New("slot is not offered by the provider")
	ErrSlotTaken         = errors.New("slot is already taken")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidReason     = errors.New("invalid reason")
	ErrNotFound          = errors.New("appointment not found")
)

// TransitionError names the current and requested status of a rejected
// transition. It matches ErrInvalidTransition under errors.Is.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
