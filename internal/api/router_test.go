package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-scheduling/internal/appointment"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/identity"
	"github.com/hackgods/provider-scheduling/internal/lock"
	"github.com/hackgods/provider-scheduling/internal/metrics"
	"github.com/hackgods/provider-scheduling/internal/slots"
	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

const testSecret = "test-secret"

type testServer struct {
	handler  http.Handler
	auth     *Authenticator
	provider identity.Actor
	patient  identity.Actor
	other    identity.Actor
}

func newTestServer(t *testing.T, dev bool) *testServer {
	t.Helper()

	grid, err := timegrid.NewGrid(timegrid.MustTimeOfDay(9, 0), 30*time.Minute, 17)
	require.NoError(t, err)

	log := zerolog.Nop()
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	schedules := availability.NewService(availability.NewMemoryRepository(), log)
	ledger := appointment.NewMemoryLedger()
	resolver := slots.NewResolver(grid, schedules, ledger)
	engine := appointment.NewEngine(ledger, resolver, lock.NewLocalLocker(time.Second), m, log, appointment.Options{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) },
	})
	auth := NewAuthenticator(testSecret, dev)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Schedules: schedules,
			Resolver:  resolver,
			Engine:    engine,
			Auth:      auth,
			Metrics:   m,
			Log:       log,
			Env:       "test",
		}),
		auth:     auth,
		provider: identity.Actor{UserID: uuid.New(), Role: identity.RoleDoctor},
		patient:  identity.Actor{UserID: uuid.New(), Role: identity.RolePatient},
		other:    identity.Actor{UserID: uuid.New(), Role: identity.RolePatient},
	}
}

func (s *testServer) do(t *testing.T, as identity.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as.UserID != uuid.Nil {
		token, err := s.auth.IssueToken(as, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) setMonday(t *testing.T) {
	t.Helper()
	rec := s.do(t, s.provider, http.MethodPut, "/providers/"+s.provider.UserID.String()+"/schedule", map[string]any{
		"monday": map[string]any{"enabled": true, "ranges": []map[string]string{{"start": "09:00", "end": "11:00"}}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (s *testServer) reserve(as identity.Actor, t *testing.T, slot int) *httptest.ResponseRecorder {
	return s.do(t, as, http.MethodPost, "/appointments", map[string]any{
		"provider_id": s.provider.UserID.String(),
		"patient_id":  as.UserID.String(),
		"date":        "2026-10-19",
		"slot_index":  slot,
		"reason":      "annual checkup",
	})
}

func TestRouter_BookingFlow(t *testing.T) {
	s := newTestServer(t, false)
	s.setMonday(t)
	base := "/providers/" + s.provider.UserID.String()

	rec := s.do(t, s.patient, http.MethodGet, base+"/slots?weekday=Monday", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[SlotsResponse](t, rec)
	require.Len(t, avail.Slots, 4)
	assert.Equal(t, "09:30", avail.Slots[1].Start.String())

	rec = s.reserve(s.patient, t, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "scheduled", appt.Status)
	assert.Equal(t, "09:30", appt.SlotStart)
	assert.Equal(t, "10:00", appt.SlotEnd)
	assert.Equal(t, availability.Monday, appt.Weekday)

	rec = s.do(t, s.patient, http.MethodGet, base+"/bookable?date=2026-10-19", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var idxs []int
	for _, sl := range decode[SlotsResponse](t, rec).Slots {
		idxs = append(idxs, sl.Index)
	}
	assert.Equal(t, []int{0, 2, 3}, idxs)

	rec = s.reserve(s.other, t, 1)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_taken", decode[ErrorResponse](t, rec).Error)

	apptPath := "/appointments/" + appt.ID.String()

	rec = s.do(t, s.patient, http.MethodPost, apptPath+"/confirm", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, s.provider, http.MethodPost, apptPath+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, s.provider, http.MethodPost, apptPath+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, s.patient, http.MethodPost, apptPath+"/reschedule", map[string]any{"date": "2026-10-26", "slot_index": 0})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	moved := decode[AppointmentResponse](t, rec)
	require.NotNil(t, moved.RescheduledFrom)
	assert.Equal(t, appt.ID, *moved.RescheduledFrom)

	rec = s.do(t, s.patient, http.MethodGet, apptPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, s.patient, http.MethodGet, "/patients/"+s.patient.UserID.String()+"/appointments?status=scheduled", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[AppointmentListResponse](t, rec)
	require.Len(t, list.Appointments, 1)
	assert.Equal(t, moved.ID, list.Appointments[0].ID)
	assert.Equal(t, appointment.DefaultListLimit, list.Limit)

	rec = s.do(t, s.other, http.MethodGet, base+"/appointments", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ConcurrentReserveOneWinner(t *testing.T) {
	s := newTestServer(t, false)
	s.setMonday(t)

	const n = 16
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := identity.Actor{UserID: uuid.New(), Role: identity.RolePatient}
			codes[i] = s.reserve(p, t, 2).Code
		}(i)
	}
	wg.Wait()

	created, conflicts := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestRouter_ScheduleValidation(t *testing.T) {
	s := newTestServer(t, false)
	path := "/providers/" + s.provider.UserID.String() + "/schedule"

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"sunday", map[string]any{"sunday": map[string]any{"enabled": true, "ranges": []map[string]string{{"start": "09:00", "end": "10:00"}}}}, "invalid_day"},
		{"empty", map[string]any{"monday": map[string]any{"enabled": true, "ranges": []any{}}}, "empty_ranges"},
		{"inverted", map[string]any{"monday": map[string]any{"enabled": true, "ranges": []map[string]string{{"start": "11:00", "end": "10:00"}}}}, "invalid_range"},
		{"overlap", map[string]any{"monday": map[string]any{"enabled": true, "ranges": []map[string]string{
			{"start": "09:00", "end": "10:30"}, {"start": "10:00", "end": "11:00"},
		}}}, "overlapping_ranges"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, s.provider, http.MethodPut, path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}

	rec := s.do(t, s.provider, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, s.other, http.MethodPut, path, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ScheduleCapitalizedDays(t *testing.T) {
	s := newTestServer(t, false)
	base := "/providers/" + s.provider.UserID.String()

	rec := s.do(t, s.provider, http.MethodPut, base+"/schedule", map[string]any{
		"Monday":  map[string]any{"enabled": true, "ranges": []map[string]string{{"start": "09:00", "end": "10:00"}}},
		"Tuesday": map[string]any{"enabled": false, "ranges": []any{}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"monday"`)

	rec = s.do(t, s.patient, http.MethodGet, base+"/slots?weekday=monday", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SlotsResponse](t, rec).Slots, 2)
}

func TestRouter_BadInput(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, s.patient, http.MethodPost, "/appointments", map[string]any{
		"provider_id": "nope", "patient_id": s.patient.UserID.String(), "date": "2026-10-19", "slot_index": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, s.patient, http.MethodGet, "/providers/"+s.provider.UserID.String()+"/bookable?date=monday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, s.patient, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, s.patient, http.MethodGet, "/patients/"+s.patient.UserID.String()+"/appointments?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Authentication(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, identity.Actor{}, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewAuthenticator("another-secret", false)
	token, err := other.IssueToken(s.patient, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/grid", nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := s.auth.IssueToken(s.patient, -time.Minute)
	require.NoError(t, err)
	_, err = s.auth.Verify(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	req = httptest.NewRequest(http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	req.Header.Set("X-User-ID", s.patient.UserID.String())
	req.Header.Set("X-User-Role", "patient")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_DevHeaders(t *testing.T) {
	s := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	req.Header.Set("X-User-ID", s.patient.UserID.String())
	req.Header.Set("X-User-Role", "patient")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, identity.Actor{}, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "disabled", ready.Dependencies["postgres"])

	rec = s.do(t, identity.Actor{}, http.MethodGet, "/grid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decode[GridResponse](t, rec)
	assert.Equal(t, 30, grid.SlotMinutes)
	assert.Len(t, grid.Slots, 17)
	assert.Equal(t, "17:30", grid.Slots[16].End.String())

	rec = s.do(t, identity.Actor{}, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/grid",status="200"} 1`)
}
