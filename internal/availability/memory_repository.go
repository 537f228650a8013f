package availability

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps templates in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]WeeklyTemplate
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{templates: make(map[uuid.UUID]WeeklyTemplate)}
}

func (r *MemoryRepository) Get(ctx context.Context, providerID uuid.UUID) (WeeklyTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[providerID]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepository) Put(ctx context.Context, providerID uuid.UUID, t WeeklyTemplate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := t.Clone()

	r.mu.Lock()
	r.templates[providerID] = stored
	r.mu.Unlock()
	return nil
}
