// Package identity carries the acting caller's {userID, role} pair. The
// scheduling core trusts these values; verifying credentials is the job of
// the authentication layer in front of it.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

var ErrInvalidRole = errors.New("invalid role")

func (r Role) IsValid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Actor is the identity performing an operation.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsProvider reports whether the actor is the doctor identified by providerID.
func (a Actor) IsProvider(providerID uuid.UUID) bool {
	return a.Role == RoleDoctor && a.UserID == providerID
}

// IsPatient reports whether the actor is the patient identified by patientID.
func (a Actor) IsPatient(patientID uuid.UUID) bool {
	return a.Role == RolePatient && a.UserID == patientID
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", a.Role, a.UserID)
}

// System is the actor used by background jobs.
var System = Actor{UserID: uuid.Nil, Role: RoleAdmin}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
