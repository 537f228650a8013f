package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/api"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/config"
	"github.com/hackgods/provider-scheduling/internal/identity"
	"github.com/hackgods/provider-scheduling/internal/logger"
	"github.com/hackgods/provider-scheduling/internal/seeddata"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Providers    int
	Patients     int
	Weeks        int
	Burst        int
	BookingRatio float64
	ConfirmRatio float64
	CancelRatio  float64
	ReadRatio    float64
	JWTSecret    string
}

// target is one bookable (provider, date, slot) occurrence.
type target struct {
	Provider uuid.UUID
	Date     string
	Slot     int
}

type booking struct {
	ID       uuid.UUID
	Provider uuid.UUID
	Patient  uuid.UUID
}

type DataPool struct {
	Providers []uuid.UUID
	Patients  []uuid.UUID
	Targets   []target

	mu       sync.RWMutex
	bookings []booking
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	i := n * p / 100
	if i >= n {
		i = n - 1
	}
	return i
}

type Metrics struct {
	Booking       OperationMetrics
	Confirm       OperationMetrics
	Cancel        OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Bookable      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	auth    *api.Authenticator
	admin   identity.Actor
	metrics Metrics
	log     zerolog.Logger

	burstWinners  int64
	burstAttempts int64
	burstKeys     int64
	burstBroken   int64
}

func main() {
	log := logger.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "console")).With().Str("service", "simulate").Logger()

	cfg := loadConfig(log)
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		auth:   api.NewAuthenticator(cfg.JWTSecret, false),
		admin:  identity.Actor{UserID: uuid.New(), Role: identity.RoleAdmin},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := sim.Prepare(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("prepare data pool")
	}
	cancel()

	log.Info().
		Int("providers", len(sim.pool.Providers)).
		Int("patients", len(sim.pool.Patients)).
		Int("targets", len(sim.pool.Targets)).
		Msg("data pool ready")

	sim.Burst()
	sim.Run()

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), time.Minute)
	doubles, err := sim.Verify(verifyCtx)
	cancelVerify()
	if err != nil {
		log.Error().Err(err).Msg("verification failed")
	}

	sim.PrintReport(doubles)

	if doubles > 0 || atomic.LoadInt64(&sim.burstBroken) > 0 {
		os.Exit(1)
	}
}

func loadConfig(log zerolog.Logger) SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Providers:    getInt("SIM_PROVIDERS", 20),
		Patients:     getInt("SIM_PATIENTS", 500),
		Weeks:        getInt("SIM_WEEKS", 2),
		Burst:        getInt("SIM_BURST", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.15),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		JWTSecret:    baseCfg.JWTSecret,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to mint simulation tokens")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Providers <= 0 || cfg.Patients <= 0 || cfg.Weeks <= 0 {
		return fmt.Errorf("SIM_PROVIDERS, SIM_PATIENTS and SIM_WEEKS must be > 0")
	}
	return nil
}

// Prepare publishes a random template for each provider and collects every
// bookable slot over the next SIM_WEEKS weeks.
func (s *Simulator) Prepare(ctx context.Context) error {
	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	for i := 0; i < s.config.Patients; i++ {
		s.pool.Patients = append(s.pool.Patients, uuid.New())
	}

	start := availability.DateOf(time.Now()).AddDate(0, 0, 1)

	for i := 0; i < s.config.Providers; i++ {
		id := uuid.New()
		path := "/providers/" + id.String()

		status, body, err := s.call(ctx, s.admin, http.MethodPut, path+"/schedule", seeddata.Template(faker))
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("set schedule for %s: status %d: %s", id, status, body)
		}
		s.pool.Providers = append(s.pool.Providers, id)

		for d := 0; d < 7*s.config.Weeks; d++ {
			date := start.AddDate(0, 0, d)
			if !availability.WeekdayOf(date).IsBusinessDay() {
				continue
			}
			ds := date.Format(availability.DateLayout)

			status, body, err := s.call(ctx, s.admin, http.MethodGet, path+"/bookable?date="+ds, nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("bookable slots for %s on %s: status %d", id, ds, status)
			}

			var resp api.SlotsResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("decode bookable slots: %w", err)
			}
			for _, sl := range resp.Slots {
				s.pool.Targets = append(s.pool.Targets, target{Provider: id, Date: ds, Slot: sl.Index})
			}
		}
	}

	if len(s.pool.Targets) == 0 {
		return fmt.Errorf("no bookable slots generated")
	}
	return nil
}

// Burst fires SIM_BURST simultaneous reservations at each of a few keys
// and checks that exactly one wins every time.
func (s *Simulator) Burst() {
	if s.config.Burst <= 1 {
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	keys := 10
	if keys > len(s.pool.Targets) {
		keys = len(s.pool.Targets)
	}

	for k := 0; k < keys; k++ {
		t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]

		var wins int64
		var wg sync.WaitGroup
		gate := make(chan struct{})
		for i := 0; i < s.config.Burst; i++ {
			patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				if ok, _ := s.book(ctx, t, patient); ok {
					atomic.AddInt64(&wins, 1)
				}
			}()
		}
		close(gate)
		wg.Wait()

		atomic.AddInt64(&s.burstKeys, 1)
		atomic.AddInt64(&s.burstAttempts, int64(s.config.Burst))
		atomic.AddInt64(&s.burstWinners, wins)
		if wins > 1 {
			atomic.AddInt64(&s.burstBroken, 1)
			s.log.Error().Str("provider_id", t.Provider.String()).Str("date", t.Date).Int("slot", t.Slot).Int64("winners", wins).Msg("double booking under burst")
		}
	}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByPatient(ctx, rng)
			case 2:
				s.doBookable(ctx, rng)
			}
		}
	}
}

// book reports whether the reservation succeeded, or else whether it was
// rejected as a conflict.
func (s *Simulator) book(ctx context.Context, t target, patient uuid.UUID) (ok bool, conflict bool) {
	status, body, err := s.call(ctx, identity.Actor{UserID: patient, Role: identity.RolePatient}, http.MethodPost, "/appointments", map[string]any{
		"provider_id": t.Provider.String(),
		"patient_id":  patient.String(),
		"date":        t.Date,
		"slot_index":  t.Slot,
		"reason":      seeddata.Reason(gofakeit.GlobalFaker),
	})
	if err != nil {
		return false, false
	}

	switch status {
	case http.StatusCreated:
		var resp api.AppointmentResponse
		if json.Unmarshal(body, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.AddBooking(booking{ID: resp.ID, Provider: t.Provider, Patient: patient})
		}
		return true, false
	case http.StatusConflict:
		return false, true
	}
	return false, false
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	ok, conflict := s.book(ctx, t, patient)
	s.metrics.Booking.Record(time.Since(start), ok, conflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}
	s.transition(ctx, &s.metrics.Confirm, identity.Actor{UserID: b.Provider, Role: identity.RoleDoctor}, b.ID, "confirm")
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}
	s.transition(ctx, &s.metrics.Cancel, identity.Actor{UserID: b.Patient, Role: identity.RolePatient}, b.ID, "cancel")
}

func (s *Simulator) transition(ctx context.Context, om *OperationMetrics, as identity.Actor, id uuid.UUID, op string) {
	start := time.Now()
	status, _, err := s.call(ctx, as, http.MethodPost, "/appointments/"+id.String()+"/"+op, nil)
	om.Record(time.Since(start), err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, _, err := s.call(ctx, identity.Actor{UserID: b.Patient, Role: identity.RolePatient}, http.MethodGet, "/appointments/"+b.ID.String(), nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, _, err := s.call(ctx, identity.Actor{UserID: patient, Role: identity.RolePatient}, http.MethodGet,
		"/patients/"+patient.String()+"/appointments?limit=20&offset=0", nil)
	s.metrics.ListByPatient.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doBookable(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]

	start := time.Now()
	status, _, err := s.call(ctx, s.admin, http.MethodGet, "/providers/"+t.Provider.String()+"/bookable?date="+t.Date, nil)
	s.metrics.Bookable.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// Verify pages through every provider's appointments and counts keys held
// by more than one active appointment. The answer must be zero.
func (s *Simulator) Verify(ctx context.Context) (int, error) {
	doubles := 0

	for _, provider := range s.pool.Providers {
		held := make(map[string]int)

		for offset := 0; ; offset += 100 {
			path := fmt.Sprintf("/providers/%s/appointments?limit=100&offset=%d", provider, offset)
			status, body, err := s.call(ctx, s.admin, http.MethodGet, path, nil)
			if err != nil {
				return doubles, err
			}
			if status != http.StatusOK {
				return doubles, fmt.Errorf("list %s: status %d", provider, status)
			}

			var page api.AppointmentListResponse
			if err := json.Unmarshal(body, &page); err != nil {
				return doubles, fmt.Errorf("decode appointments: %w", err)
			}

			for _, a := range page.Appointments {
				if a.Status == "scheduled" || a.Status == "confirmed" {
					held[a.Date+"/"+strconv.Itoa(a.SlotIndex)]++
				}
			}
			if len(page.Appointments) < 100 {
				break
			}
		}

		for key, n := range held {
			if n > 1 {
				doubles++
				s.log.Error().Str("provider_id", provider.String()).Str("key", key).Int("active", n).Msg("double booking detected")
			}
		}
	}

	return doubles, nil
}

func (s *Simulator) call(ctx context.Context, as identity.Actor, method, path string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := s.auth.IssueToken(as, 5*time.Minute)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (s *Simulator) PrintReport(doubles int) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	if keys := atomic.LoadInt64(&s.burstKeys); keys > 0 {
		fmt.Println("Burst:")
		fmt.Printf("  Keys: %d\n", keys)
		fmt.Printf("  Attempts: %d\n", atomic.LoadInt64(&s.burstAttempts))
		fmt.Printf("  Winners: %d\n", atomic.LoadInt64(&s.burstWinners))
		fmt.Printf("  Keys with more than one winner: %d\n", atomic.LoadInt64(&s.burstBroken))
		fmt.Println()
	}

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Bookable Slots", &s.metrics.Bookable)

	fmt.Printf("Double-booked keys after run: %d\n", doubles)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
