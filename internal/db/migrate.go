package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS provider_schedules (
		provider_id UUID PRIMARY KEY,
		template    JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id               UUID PRIMARY KEY,
		provider_id      UUID NOT NULL,
		patient_id       UUID NOT NULL,
		appointment_date DATE NOT NULL,
		weekday          TEXT NOT NULL CHECK (weekday <> 'sunday'),
		slot_index       INT NOT NULL CHECK (slot_index >= 0),
		reason           TEXT NOT NULL,
		status           TEXT NOT NULL CHECK (status IN ('scheduled', 'confirmed', 'completed', 'cancelled')),
		rescheduled_from UUID REFERENCES appointments (id),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// at most one active appointment per provider, date and slot
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_uidx
		ON appointments (provider_id, appointment_date, slot_index)
		WHERE status IN ('scheduled', 'confirmed')`,

	`CREATE INDEX IF NOT EXISTS appointments_provider_idx
		ON appointments (provider_id, appointment_date DESC)`,

	`CREATE INDEX IF NOT EXISTS appointments_patient_idx
		ON appointments (patient_id, appointment_date DESC)`,

	`CREATE INDEX IF NOT EXISTS appointments_lapse_idx
		ON appointments (appointment_date)
		WHERE status = 'scheduled'`,

	`CREATE TABLE IF NOT EXISTS event_logs (
		id             BIGSERIAL PRIMARY KEY,
		event_type     TEXT NOT NULL,
		appointment_id UUID REFERENCES appointments (id),
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
