package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/wellness-reschedule/internal/config"
	"github.com/hackgods/wellness-reschedule/internal/db"
)

// The simulator hammers the reschedule endpoints the way a flaky client
// would: every proposal gets several simultaneous accept/decline answers.
// Afterwards it checks that each request was answered exactly once and
// that every touched wallet still reconciles with its ledger.

type SimConfig struct {
	APIBaseURL       string
	Appointments     int
	Workers          int
	RespondersPerReq int
	DeclineRatio     float64
	PostgresDSN      string
}

type target struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
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

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Metrics struct {
	Propose OperationMetrics
	Respond OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	metrics Metrics

	mu          sync.Mutex
	winners     map[uuid.UUID]int
	patients    map[uuid.UUID]struct{}
	duplicateOK int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: appointments=%d workers=%d responders=%d decline=%.2f",
		cfg.Appointments, cfg.Workers, cfg.RespondersPerReq, cfg.DeclineRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 0, nil)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	targets, err := loadTargets(ctx, pgPool, cfg.Appointments)
	if err != nil {
		log.Fatalf("load appointments: %v", err)
	}
	log.Printf("loaded %d reschedulable appointments", len(targets))

	sim := &Simulator{
		config:   cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		winners:  make(map[uuid.UUID]int),
		patients: make(map[uuid.UUID]struct{}),
	}

	sim.Run(targets)
	ok := sim.PrintReport(context.Background())
	if !ok {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:       getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Appointments:     getInt("SIM_APPOINTMENTS", 200),
		Workers:          getInt("SIM_WORKERS", 10),
		RespondersPerReq: getInt("SIM_RESPONDERS", 4),
		DeclineRatio:     getFloat("SIM_DECLINE_RATIO", 0.5),
		PostgresDSN:      baseCfg.PostgresDSN,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.RespondersPerReq < 2 {
		return fmt.Errorf("SIM_RESPONDERS must be >= 2")
	}
	return nil
}

func loadTargets(ctx context.Context, pool *pgxpool.Pool, limit int) ([]target, error) {
	rows, err := pool.Query(ctx, `
		SELECT a.id, a.patient_id
		FROM appointments a
		WHERE a.status IN ('pending', 'confirmed')
		  AND a.patient_id IS NOT NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM reschedule_requests r
		      WHERE r.appointment_id = a.id AND r.status = 'pending'
		  )
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.AppointmentID, &t.PatientID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no appointments available, run cmd/seed first")
	}
	return out, nil
}

func (s *Simulator) Run(targets []target) {
	work := make(chan target)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			for t := range work {
				s.exercise(context.Background(), rng, t)
			}
		}(i)
	}

	for _, t := range targets {
		work <- t
	}
	close(work)
	wg.Wait()
	log.Println("simulation complete")
}

// exercise proposes a new time and then races several responses for it.
func (s *Simulator) exercise(ctx context.Context, rng *rand.Rand, t target) {
	proposed := time.Now().UTC().AddDate(0, 0, 7+rng.Intn(21))
	var created struct {
		RescheduleRequest struct {
			ID uuid.UUID `json:"id"`
		} `json:"rescheduleRequest"`
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/reschedule", map[string]any{
		"appointmentId": t.AppointmentID.String(),
		"proposedDate":  proposed.Format("2006-01-02"),
		"proposedTime":  fmt.Sprintf("%02d:%02d", 8+rng.Intn(10), 30*rng.Intn(2)),
		"reason":        "schedule change",
	}, &created)
	s.metrics.Propose.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusBadRequest || status == http.StatusConflict)
	if err != nil || status != http.StatusOK {
		return
	}

	s.mu.Lock()
	s.patients[t.PatientID] = struct{}{}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < s.config.RespondersPerReq; i++ {
		action := "accept"
		if rng.Float64() < s.config.DeclineRatio {
			action = "decline"
		}

		wg.Add(1)
		go func(action string) {
			defer wg.Done()
			start := time.Now()
			status, err := s.call(ctx, http.MethodPut, "/reschedule", map[string]any{
				"requestId": created.RescheduleRequest.ID.String(),
				"action":    action,
				"userId":    t.PatientID.String(),
			}, nil)
			won := err == nil && status == http.StatusOK
			s.metrics.Respond.Record(time.Since(start), won, status == http.StatusBadRequest)
			if won {
				s.mu.Lock()
				s.winners[created.RescheduleRequest.ID]++
				if s.winners[created.RescheduleRequest.ID] > 1 {
					atomic.AddInt64(&s.duplicateOK, 1)
				}
				s.mu.Unlock()
			}
		}(action)
	}
	wg.Wait()
}

func (s *Simulator) call(ctx context.Context, method, path string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// PrintReport prints latency figures and the consistency checks. It reports
// false when any invariant was broken.
func (s *Simulator) PrintReport(ctx context.Context) bool {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Workers: %d, responders per request: %d\n\n", s.config.Workers, s.config.RespondersPerReq)

	printOperationReport("Propose", &s.metrics.Propose)
	printOperationReport("Respond", &s.metrics.Respond)

	ok := true

	dup := atomic.LoadInt64(&s.duplicateOK)
	fmt.Printf("Requests answered: %d, answered more than once: %d\n", len(s.winners), dup)
	if dup > 0 {
		ok = false
	}

	drifted := 0
	for patientID := range s.patients {
		var audit struct {
			Consistent bool `json:"consistent"`
		}
		status, err := s.call(ctx, http.MethodGet, "/wallets/"+patientID.String()+"/audit", nil, &audit)
		if err != nil || status != http.StatusOK {
			log.Printf("audit %s failed: status=%d err=%v", patientID, status, err)
			continue
		}
		if !audit.Consistent {
			drifted++
		}
	}
	fmt.Printf("Wallets audited: %d, inconsistent: %d\n", len(s.patients), drifted)
	if drifted > 0 {
		ok = false
	}

	if ok {
		fmt.Println("RESULT: consistent")
	} else {
		fmt.Println("RESULT: INCONSISTENT")
	}
	return ok
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
