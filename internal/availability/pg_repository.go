package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository stores each template as one JSONB document, so a replace is
// a single-row upsert.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Get(ctx context.Context, providerID uuid.UUID) (WeeklyTemplate, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT template
		FROM provider_schedules
		WHERE provider_id = $1
	`, providerID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	var t WeeklyTemplate
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return t, nil
}

func (r *PgRepository) Put(ctx context.Context, providerID uuid.UUID, t WeeklyTemplate) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO provider_schedules (provider_id, template, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (provider_id) DO UPDATE
		SET template = EXCLUDED.template,
		    updated_at = now()
	`, providerID, raw)
	if err != nil {
		return fmt.Errorf("store schedule: %w", err)
	}
	return nil
}
