package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	ownerID     string
	hospitalIDs []string
)

// Metrics
var (
	totalRequests uint64
	created201    uint64
	outOfStock422 uint64
	conflict409   uint64
	unavailable   uint64 // 503 after the retry budget ran out
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&ownerID, "owner", "guest", "Profile that reserves the bags")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	ids, err := fetchHospitals()
	if err != nil {
		log.Fatalf("Unable to list hospitals: %v", err)
	}
	if len(ids) == 0 {
		log.Fatal("No hospitals found; run the seeder first")
	}
	hospitalIDs = ids

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return worker(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	printResults(time.Since(start))
}

func worker(ctx context.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}

	for ctx.Err() == nil {
		hospitalID, group := pickEntry()
		payload := map[string]interface{}{
			"owner_id":     ownerID,
			"hospital_id":  hospitalID,
			"blood_group":  group,
			"bag_quantity": 1,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", targetURL+"/api/v1/reservations", bytes.NewBuffer(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "bench-"+uuid.NewString())

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&created201, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&outOfStock422, 1)
		case http.StatusConflict:
			atomic.AddUint64(&conflict409, 1)
		case http.StatusServiceUnavailable:
			atomic.AddUint64(&unavailable, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
	return nil
}

// pickEntry chooses the ledger entry to reserve from.
func pickEntry() (string, domain.BloodGroup) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes to O- at the first hospital
		if rand.Float32() < 0.90 {
			return hospitalIDs[0], domain.GroupONeg
		}
	}

	// Uniform Random
	return hospitalIDs[rand.Intn(len(hospitalIDs))], domain.BloodGroups[rand.Intn(len(domain.BloodGroups))]
}

func fetchHospitals() ([]string, error) {
	resp, err := http.Get(targetURL + "/api/v1/hospitals")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var hospitals []domain.Hospital
	if err := json.NewDecoder(resp.Body).Decode(&hospitals); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(hospitals))
	for _, h := range hospitals {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	c201 := atomic.LoadUint64(&created201)
	f422 := atomic.LoadUint64(&outOfStock422)
	f409 := atomic.LoadUint64(&conflict409)
	f503 := atomic.LoadUint64(&unavailable)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var unavailableRate float64
	if total > 0 {
		unavailableRate = float64(f503) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":             workload,
		"duration_sec":         d.Seconds(),
		"total_requests":       total,
		"throughput_tps":       tps,
		"reservations_created": c201,
		"out_of_stock":         f422,
		"conflicts":            f409,
		"retries_exhausted":    f503,
		"unavailable_rate_pct": unavailableRate,
		"errors":               fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Unable to write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
