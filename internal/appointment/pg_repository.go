package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, provider_id, patient_id, appointment_date, weekday, slot_index, reason, status, rescheduled_from, created_at, updated_at`

// PgLedger relies on the partial unique index over
// (provider_id, appointment_date, slot_index) for active statuses; a
// conflicting insert returns no row instead of a second booking.
type PgLedger struct {
	pool *pgxpool.Pool
}

func NewPgLedger(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.PatientID,
		&a.Date,
		&a.Weekday,
		&a.SlotIndex,
		&a.Reason,
		&a.Status,
		&a.RescheduledFrom,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Date = a.Date.UTC()
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func insertActive(ctx context.Context, q querier, a Appointment) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8, now(), now())
		ON CONFLICT (provider_id, appointment_date, slot_index)
		  WHERE status IN ('scheduled', 'confirmed')
		  DO NOTHING
		RETURNING `+appointmentColumns,
		a.ID, a.ProviderID, a.PatientID, a.Date, a.Weekday, a.SlotIndex, a.Reason, a.RescheduledFrom)

	created, err := scanAppointment(row)
	switch {
	case errors.Is(err, ErrNotFound), isUniqueViolation(err):
		return nil, ErrSlotTaken
	case err != nil:
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func updateStatus(ctx context.Context, q querier, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)
	return scanAppointment(row)
}

// Interface methods

func (r *PgLedger) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	return insertActive(ctx, r.pool, a)
}

func (r *PgLedger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgLedger) Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	return updateStatus(ctx, r.pool, id, from, to)
}

func (r *PgLedger) Reschedule(ctx context.Context, old uuid.UUID, from Status, next Appointment) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := updateStatus(ctx, tx, old, from, StatusCancelled); err != nil {
		return nil, err
	}

	created, err := insertActive(ctx, tx, next)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}
	return created, nil
}

func (r *PgLedger) OccupiedSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_index
		FROM appointments
		WHERE provider_id = $1
		  AND appointment_date = $2
		  AND status IN ('scheduled', 'confirmed')
		ORDER BY slot_index
	`, providerID, date)
	if err != nil {
		return nil, err
	}

	idxs, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	return idxs, nil
}

func (r *PgLedger) ListByProvider(ctx context.Context, providerID uuid.UUID, f Filter) ([]Appointment, error) {
	return r.list(ctx, "provider_id", providerID, f)
}

func (r *PgLedger) ListByPatient(ctx context.Context, patientID uuid.UUID, f Filter) ([]Appointment, error) {
	return r.list(ctx, "patient_id", patientID, f)
}

// column is one of two constants above, never caller input.
func (r *PgLedger) list(ctx context.Context, column string, id uuid.UUID, f Filter) ([]Appointment, error) {
	f = f.normalized()

	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+column+` = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY appointment_date DESC, slot_index DESC, created_at DESC
		LIMIT $3 OFFSET $4
	`, id, status, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgLedger) FindLapsed(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND appointment_date < $1
		ORDER BY appointment_date
	`, before)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgLedger) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
