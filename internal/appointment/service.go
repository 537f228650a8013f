package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/identity"
	"github.com/hackgods/provider-scheduling/internal/lock"
	"github.com/hackgods/provider-scheduling/internal/metrics"
	"github.com/hackgods/provider-scheduling/internal/slots"
)

const (
	EventAppointmentReserved    = "APPOINTMENT_RESERVED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentLapsed      = "APPOINTMENT_LAPSED"
)

// SlotSource resolves which slots a provider offers on a weekday.
type SlotSource interface {
	Resolve(ctx context.Context, providerID uuid.UUID, weekday availability.Weekday) (slots.Day, error)
}

type Options struct {
	ReasonMinLength int
	ReasonMaxLength int
	// Location is the provider-local zone used to decide what "today" is.
	Location *time.Location
	Now      func() time.Time
}

type Engine struct {
	ledger  Ledger
	slots   SlotSource
	locker  lock.Locker
	metrics *metrics.Collector
	log     zerolog.Logger
	opts    Options
}

func NewEngine(ledger Ledger, slots SlotSource, locker lock.Locker, m *metrics.Collector, log zerolog.Logger, opts Options) *Engine {
	if opts.ReasonMinLength <= 0 {
		opts.ReasonMinLength = 1
	}
	if opts.ReasonMaxLength <= 0 {
		opts.ReasonMaxLength = 500
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		ledger:  ledger,
		slots:   slots,
		locker:  locker,
		metrics: m,
		log:     log.With().Str("component", "booking").Logger(),
		opts:    opts,
	}
}

type ReserveRequest struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	Date       time.Time
	SlotIndex  int
	Reason     string
}

// Reserve books a slot for a patient. The conflict check and the insert
// run under the per-key lock, and the ledger insert itself is conditional
// on the key being free, so concurrent callers for one key see exactly one
// success and ErrSlotTaken otherwise.
func (e *Engine) Reserve(ctx context.Context, actor identity.Actor, req ReserveRequest) (*Appointment, error) {
	appt, err := e.reserve(ctx, actor, req)
	e.metrics.Reservation(outcome(err))
	return appt, err
}

func (e *Engine) reserve(ctx context.Context, actor identity.Actor, req ReserveRequest) (*Appointment, error) {
	if !actor.IsAdmin() && !actor.IsPatient(req.PatientID) {
		return nil, ErrForbidden
	}

	reason, err := e.checkReason(req.Reason)
	if err != nil {
		return nil, err
	}

	date, weekday, err := e.checkTarget(ctx, req.ProviderID, req.Date, req.SlotIndex)
	if err != nil {
		return nil, err
	}

	next := Appointment{
		ID:         uuid.New(),
		ProviderID: req.ProviderID,
		PatientID:  req.PatientID,
		Date:       date,
		Weekday:    weekday,
		SlotIndex:  req.SlotIndex,
		Reason:     reason,
	}

	var created *Appointment
	err = e.locker.WithLock(ctx, next.Key().String(), func(lockCtx context.Context) error {
		appt, err := e.ledger.Insert(lockCtx, next)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, e.lockErr(err, "reserve")
	}

	e.logEvent(ctx, created.ID, EventAppointmentReserved, actor, map[string]any{
		"provider_id": created.ProviderID.String(),
		"patient_id":  created.PatientID.String(),
		"date":        created.Date.Format(availability.DateLayout),
		"slot_index":  created.SlotIndex,
	})
	e.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("key", created.Key().String()).
		Str("actor", actor.String()).
		Msg("appointment reserved")

	return created, nil
}

// Confirm moves a scheduled appointment to confirmed. Only the owning
// provider or an admin may confirm.
func (e *Engine) Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return e.transition(ctx, actor, id, StatusConfirmed, EventAppointmentConfirmed, func(a *Appointment) bool {
		return actor.IsAdmin() || actor.IsProvider(a.ProviderID)
	})
}

// Complete moves a confirmed appointment to completed. Only the owning
// provider may complete.
func (e *Engine) Complete(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return e.transition(ctx, actor, id, StatusCompleted, EventAppointmentCompleted, func(a *Appointment) bool {
		return actor.IsProvider(a.ProviderID)
	})
}

// Cancel frees the appointment's slot. Either participant may cancel a
// scheduled or confirmed appointment.
func (e *Engine) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return e.transition(ctx, actor, id, StatusCancelled, EventAppointmentCancelled, func(a *Appointment) bool {
		return actor.IsPatient(a.PatientID) || actor.IsProvider(a.ProviderID)
	})
}

func (e *Engine) transition(ctx context.Context, actor identity.Actor, id uuid.UUID, to Status, event string, allowed func(*Appointment) bool) (*Appointment, error) {
	appt, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(appt) {
		return nil, ErrForbidden
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, &TransitionError{From: appt.Status, To: to}
	}

	updated, err := e.ledger.Transition(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, e.staleErr(ctx, id, to)
		}
		return nil, fmt.Errorf("%s appointment: %w", to, err)
	}

	e.metrics.Transition(string(to))
	e.logEvent(ctx, updated.ID, event, actor, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})

	return updated, nil
}

// Reschedule cancels the appointment and reserves the new date and slot in
// one step. If the new slot cannot be booked, the original appointment is
// left exactly as it was.
func (e *Engine) Reschedule(ctx context.Context, actor identity.Actor, id uuid.UUID, date time.Time, slotIndex int) (*Appointment, error) {
	appt, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsPatient(appt.PatientID) && !actor.IsProvider(appt.ProviderID) {
		return nil, ErrForbidden
	}
	if !appt.Status.IsActive() {
		return nil, &TransitionError{From: appt.Status, To: StatusCancelled}
	}

	newDate, weekday, err := e.checkTarget(ctx, appt.ProviderID, date, slotIndex)
	if err != nil {
		return nil, err
	}

	from := appt.ID
	next := Appointment{
		ID:              uuid.New(),
		ProviderID:      appt.ProviderID,
		PatientID:       appt.PatientID,
		Date:            newDate,
		Weekday:         weekday,
		SlotIndex:       slotIndex,
		Reason:          appt.Reason,
		RescheduledFrom: &from,
	}

	var created *Appointment
	err = e.withKeys(ctx, []Key{appt.Key(), next.Key()}, func(lockCtx context.Context) error {
		c, err := e.ledger.Reschedule(lockCtx, appt.ID, appt.Status, next)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, e.staleErr(ctx, id, StatusCancelled)
		}
		return nil, e.lockErr(err, "reschedule")
	}

	e.metrics.Transition(string(StatusCancelled))
	e.logEvent(ctx, appt.ID, EventAppointmentRescheduled, actor, map[string]any{
		"from":             string(appt.Status),
		"to":               string(StatusCancelled),
		"replacement_id":   created.ID.String(),
		"replacement_date": created.Date.Format(availability.DateLayout),
		"replacement_slot": created.SlotIndex,
	})
	e.logEvent(ctx, created.ID, EventAppointmentReserved, actor, map[string]any{
		"provider_id":      created.ProviderID.String(),
		"patient_id":       created.PatientID.String(),
		"date":             created.Date.Format(availability.DateLayout),
		"slot_index":       created.SlotIndex,
		"rescheduled_from": appt.ID.String(),
	})

	return created, nil
}

// Get returns the appointment if actor takes part in it or is an admin.
func (e *Engine) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsPatient(appt.PatientID) && !actor.IsProvider(appt.ProviderID) {
		return nil, ErrForbidden
	}
	return appt, nil
}

func (e *Engine) ListByProvider(ctx context.Context, actor identity.Actor, providerID uuid.UUID, f Filter) ([]Appointment, error) {
	if !actor.IsAdmin() && !actor.IsProvider(providerID) {
		return nil, ErrForbidden
	}
	out, err := e.ledger.ListByProvider(ctx, providerID, f.normalized())
	if err != nil {
		return nil, fmt.Errorf("list appointments by provider: %w", err)
	}
	return out, nil
}

func (e *Engine) ListByPatient(ctx context.Context, actor identity.Actor, patientID uuid.UUID, f Filter) ([]Appointment, error) {
	if !actor.IsAdmin() && !actor.IsPatient(patientID) {
		return nil, ErrForbidden
	}
	out, err := e.ledger.ListByPatient(ctx, patientID, f.normalized())
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return out, nil
}

// CancelLapsed cancels scheduled appointments dated before asOf that the
// provider never confirmed. It is meant to be called periodically by the
// lapse worker and returns how many were cancelled.
func (e *Engine) CancelLapsed(ctx context.Context, asOf time.Time) (int, error) {
	before := availability.DateOf(asOf.In(e.opts.Location))

	candidates, err := e.ledger.FindLapsed(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("find lapsed appointments: %w", err)
	}

	n := 0
	for _, appt := range candidates {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, err := e.ledger.Transition(ctx, appt.ID, StatusScheduled, StatusCancelled)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				e.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to cancel lapsed appointment")
			}
			continue
		}
		n++
		e.logEvent(ctx, appt.ID, EventAppointmentLapsed, identity.System, map[string]any{
			"date":       appt.Date.Format(availability.DateLayout),
			"slot_index": appt.SlotIndex,
		})
	}

	e.metrics.Lapsed(n)
	return n, nil
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := e.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// staleErr explains a conditional write that matched nothing: the
// appointment moved on between load and write.
func (e *Engine) staleErr(ctx context.Context, id uuid.UUID, to Status) error {
	cur, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	return &TransitionError{From: cur.Status, To: to}
}

func (e *Engine) lockErr(err error, op string) error {
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return fmt.Errorf("%w: slot is currently being booked", ErrSlotTaken)
	}
	if errors.Is(err, ErrSlotTaken) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) checkReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	n := utf8.RuneCountInString(reason)
	if n < e.opts.ReasonMinLength || n > e.opts.ReasonMaxLength {
		return "", fmt.Errorf("%w: length must be between %d and %d characters",
			ErrInvalidReason, e.opts.ReasonMinLength, e.opts.ReasonMaxLength)
	}
	return reason, nil
}

// checkTarget validates that date is a bookable business day, not in the
// past, and that the provider offers slotIndex on its weekday.
func (e *Engine) checkTarget(ctx context.Context, providerID uuid.UUID, date time.Time, slotIndex int) (time.Time, availability.Weekday, error) {
	date = availability.DateOf(date)
	weekday := availability.WeekdayOf(date)
	if !weekday.IsBusinessDay() {
		return time.Time{}, "", fmt.Errorf("%w: %s is not a business day", ErrInvalidDay, weekday)
	}

	today := availability.DateOf(e.opts.Now().In(e.opts.Location))
	if date.Before(today) {
		return time.Time{}, "", fmt.Errorf("%w: %s is in the past", ErrInvalidDay, date.Format(availability.DateLayout))
	}

	day, err := e.slots.Resolve(ctx, providerID, weekday)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("resolve slots: %w", err)
	}
	if !day.Enabled {
		return time.Time{}, "", fmt.Errorf("%w: provider is not available on %s", ErrInvalidDay, weekday)
	}
	if !day.Contains(slotIndex) {
		return time.Time{}, "", fmt.Errorf("%w: slot %d on %s", ErrSlotNotOffered, slotIndex, weekday)
	}
	return date, weekday, nil
}

// withKeys holds the locks for every distinct key, taken in sorted order so
// two reschedules crossing the same pair of keys cannot deadlock.
func (e *Engine) withKeys(ctx context.Context, keys []Key, fn func(ctx context.Context) error) error {
	names := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s := k.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		names = append(names, s)
	}
	sort.Strings(names)

	var run func(ctx context.Context, i int) error
	run = func(ctx context.Context, i int) error {
		if i == len(names) {
			return fn(ctx)
		}
		return e.locker.WithLock(ctx, names[i], func(lockCtx context.Context) error {
			return run(lockCtx, i+1)
		})
	}
	return run(ctx, 0)
}

// logEvent records an audit entry. Failures are logged and never change
// the outcome of the operation that produced the event.
func (e *Engine) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, actor identity.Actor, payload map[string]any) {
	payload["actor"] = actor.String()

	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     e.opts.Now(),
	}

	if err := e.ledger.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		e.log.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrSlotNotOffered):
		return "not_offered"
	case errors.Is(err, ErrInvalidDay), errors.Is(err, ErrInvalidReason):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
