package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-scheduling/internal/appointment"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

type ReserveRequest struct {
	ProviderID string `json:"provider_id"`
	PatientID  string `json:"patient_id"`
	Date       string `json:"date"`
	SlotIndex  *int   `json:"slot_index"`
	Reason     string `json:"reason"`
}

type RescheduleRequest struct {
	Date      string `json:"date"`
	SlotIndex *int   `json:"slot_index"`
}

type AppointmentResponse struct {
	ID              uuid.UUID            `json:"id"`
	ProviderID      uuid.UUID            `json:"provider_id"`
	PatientID       uuid.UUID            `json:"patient_id"`
	Date            string               `json:"date"`
	Weekday         availability.Weekday `json:"weekday"`
	SlotIndex       int                  `json:"slot_index"`
	SlotStart       string               `json:"slot_start,omitempty"`
	SlotEnd         string               `json:"slot_end,omitempty"`
	Reason          string               `json:"reason"`
	Status          string               `json:"status"`
	RescheduledFrom *uuid.UUID           `json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type SlotsResponse struct {
	ProviderID uuid.UUID            `json:"provider_id"`
	Weekday    availability.Weekday `json:"weekday"`
	Date       string               `json:"date,omitempty"`
	Slots      []timegrid.Slot      `json:"slots"`
}

type GridResponse struct {
	SlotMinutes int             `json:"slot_minutes"`
	Slots       []timegrid.Slot `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment, grid *timegrid.Grid) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		ProviderID:      a.ProviderID,
		PatientID:       a.PatientID,
		Date:            a.Date.Format(availability.DateLayout),
		Weekday:         a.Weekday,
		SlotIndex:       a.SlotIndex,
		Reason:          a.Reason,
		Status:          string(a.Status),
		RescheduledFrom: a.RescheduledFrom,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if start, end, err := grid.SlotToRange(a.SlotIndex); err == nil {
		resp.SlotStart = start.String()
		resp.SlotEnd = end.String()
	}
	return resp
}

func toSlots(grid *timegrid.Grid, idxs []int) []timegrid.Slot {
	out := make([]timegrid.Slot, 0, len(idxs))
	for _, i := range idxs {
		start, end, err := grid.SlotToRange(i)
		if err != nil {
			continue
		}
		out = append(out, timegrid.Slot{Index: i, Start: start, End: end})
	}
	return out
}
