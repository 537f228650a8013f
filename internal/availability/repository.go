package availability

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists one weekly template per provider. Put replaces the
// stored template as a single write.
type Repository interface {
	Get(ctx context.Context, providerID uuid.UUID) (WeeklyTemplate, error)
	Put(ctx context.Context, providerID uuid.UUID, t WeeklyTemplate) error
}
