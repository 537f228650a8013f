package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/appointment"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/identity"
	"github.com/hackgods/provider-scheduling/internal/slots"
)

type handlers struct {
	schedules *availability.Service
	resolver  *slots.Resolver
	engine    *appointment.Engine
	log       zerolog.Logger
}

func (h *handlers) grid(w http.ResponseWriter, r *http.Request) {
	g := h.resolver.Grid()
	writeJSON(w, http.StatusOK, GridResponse{
		SlotMinutes: int(g.Width().Minutes()),
		Slots:       g.Slots(),
	})
}

func (h *handlers) setSchedule(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}

	var tmpl availability.WeeklyTemplate
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse weekly template")
		return
	}

	saved, err := h.schedules.SetSchedule(r.Context(), actorFrom(r), providerID, tmpl)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

func (h *handlers) getSchedule(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}

	tmpl, err := h.schedules.GetSchedule(r.Context(), providerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tmpl)
}

func (h *handlers) availableSlots(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}

	weekday, err := availability.ParseWeekday(r.URL.Query().Get("weekday"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_weekday", err.Error())
		return
	}

	idxs, err := h.resolver.AvailableSlots(r.Context(), providerID, weekday)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		ProviderID: providerID,
		Weekday:    weekday,
		Slots:      toSlots(h.resolver.Grid(), idxs),
	})
}

func (h *handlers) bookableSlots(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}

	date, err := availability.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	idxs, err := h.resolver.BookableSlots(r.Context(), providerID, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		ProviderID: providerID,
		Weekday:    availability.WeekdayOf(date),
		Date:       date.Format(availability.DateLayout),
		Slots:      toSlots(h.resolver.Grid(), idxs),
	})
}

func (h *handlers) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}

	date, err := availability.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	if req.SlotIndex == nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_index", "slot_index is required")
		return
	}

	appt, err := h.engine.Reserve(r.Context(), actorFrom(r), appointment.ReserveRequest{
		ProviderID: providerID,
		PatientID:  patientID,
		Date:       date,
		SlotIndex:  *req.SlotIndex,
		Reason:     req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, h.resolver.Grid()))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.engine.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.resolver.Grid()))
}

func (h *handlers) transition(op func(r *http.Request, id uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := op(r, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.resolver.Grid()))
	}
}

func (h *handlers) confirm(r *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
	return h.engine.Confirm(r.Context(), actorFrom(r), id)
}

func (h *handlers) complete(r *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
	return h.engine.Complete(r.Context(), actorFrom(r), id)
}

func (h *handlers) cancel(r *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
	return h.engine.Cancel(r.Context(), actorFrom(r), id)
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	date, err := availability.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	if req.SlotIndex == nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_index", "slot_index is required")
		return
	}

	appt, err := h.engine.Reschedule(r.Context(), actorFrom(r), id, date, *req.SlotIndex)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, h.resolver.Grid()))
}

func (h *handlers) listByProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	list, err := h.engine.ListByProvider(r.Context(), actorFrom(r), providerID, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeList(w, list, filter)
}

func (h *handlers) listByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, ok := uuidParam(w, r, "patientID")
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	list, err := h.engine.ListByPatient(r.Context(), actorFrom(r), patientID, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeList(w, list, filter)
}

func (h *handlers) writeList(w http.ResponseWriter, list []appointment.Appointment, f appointment.Filter) {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i], h.resolver.Grid()))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = appointment.DefaultListLimit
	}
	if limit > appointment.MaxListLimit {
		limit = appointment.MaxListLimit
	}

	writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: out, Limit: limit, Offset: f.Offset})
}

// fail writes the mapped error and logs anything that is not a caller
// mistake.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	rec := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	writeDomainError(rec, err)
	if rec.statusCode >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
}

func actorFrom(r *http.Request) identity.Actor {
	a, _ := identity.FromContext(r.Context())
	return a
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(w http.ResponseWriter, r *http.Request) (appointment.Filter, bool) {
	q := r.URL.Query()
	var f appointment.Filter

	if s := q.Get("status"); s != "" {
		st, err := appointment.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return f, false
		}
		f.Status = &st
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if s := q.Get(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer")
				return f, false
			}
			*dst = n
		}
	}

	return f, true
}
