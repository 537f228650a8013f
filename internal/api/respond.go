package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/provider-scheduling/internal/appointment"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps core errors onto HTTP statuses. Anything it does
// not recognise is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var te *appointment.TransitionError

	switch {
	case errors.As(err, &te):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrSlotNotOffered):
		writeError(w, http.StatusUnprocessableEntity, "slot_not_offered", err.Error())
	case errors.Is(err, appointment.ErrInvalidReason):
		writeError(w, http.StatusUnprocessableEntity, "invalid_reason", err.Error())
	case errors.Is(err, availability.ErrInvalidDay):
		writeError(w, http.StatusUnprocessableEntity, "invalid_day", err.Error())
	case errors.Is(err, availability.ErrEmptyRanges):
		writeError(w, http.StatusUnprocessableEntity, "empty_ranges", err.Error())
	case errors.Is(err, availability.ErrOverlappingRanges):
		writeError(w, http.StatusUnprocessableEntity, "overlapping_ranges", err.Error())
	case errors.Is(err, timegrid.ErrInvalidRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid_range", err.Error())
	case errors.Is(err, timegrid.ErrOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, "out_of_range", err.Error())
	case errors.Is(err, appointment.ErrForbidden), errors.Is(err, availability.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, availability.ErrNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
