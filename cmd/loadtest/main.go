// Load test tool for driving Talon's scoring endpoint with the
// reference personas.
//
// Usage:
//   go run cmd/loadtest/main.go -url http://localhost:8080 -rounds 100
//
// This tool:
//   1. Generates the reference personas (same generator the server seeds with)
//   2. Sends POST /score for each persona, repeatedly, across workers
//   3. Compares the returned tier with the persona's designated tier
//   4. Reports the tier distribution, accuracy, and latency
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/fixtures"
)

// ScoreRequest is the Talon API request format.
type ScoreRequest struct {
	UserID string `json:"userId"`
}

// ScoreResponse is the Talon API response format.
type ScoreResponse struct {
	DecisionID string              `json:"decisionId"`
	UserID     string              `json:"userId"`
	Result     *domain.ScoreResult `json:"result"`
}

// Metrics tracks load test results.
type Metrics struct {
	TotalProcessed int64
	TierMatches    int64
	TierMismatches int64
	TotalErrors    int64

	ProcessingTimeMs int64

	mu          sync.Mutex
	tierCounts  map[domain.Tier]int64
	latenciesMs []int64
}

func (m *Metrics) record(tier domain.Tier, latencyMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tierCounts[tier]++
	m.latenciesMs = append(m.latenciesMs, latencyMs)
}

type job struct {
	userID       string
	expectedTier domain.Tier
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Talon base URL")
	rounds := flag.Int("rounds", 100, "Score requests per persona")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Fixture seed (must match the server's)")
	verbose := flag.Bool("verbose", false, "Print each mismatch")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            TALON LOAD TEST - Persona Scoring                  ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nTalon URL:  %s\n", *baseURL)
	fmt.Printf("Rounds:     %d per persona\n", *rounds)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Seed:       %d\n", *seed)
	fmt.Println()

	// Check Talon is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Talon not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Talon is running:")
		fmt.Println("  go run cmd/talon/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Talon is healthy")

	personas := fixtures.Personas(*seed, time.Now().UTC())
	fmt.Printf("✓ Generated %d personas\n", len(personas))
	for _, p := range personas {
		fmt.Printf("  - %-16s expected tier: %s\n", p.Profile.UserID, p.ExpectedTier)
	}

	fmt.Printf("\nRunning load test with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runLoadTest(personas, *baseURL, *rounds, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)

	if metrics.TierMismatches > 0 || metrics.TotalErrors > 0 {
		os.Exit(1)
	}
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runLoadTest(personas []fixtures.Persona, baseURL string, rounds, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{tierCounts: make(map[domain.Tier]int64)}

	work := make(chan job, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for j := range work {
				start := time.Now()
				result, err := scoreUser(client, baseURL, j.userID)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", j.userID, err)
					}
					continue
				}

				metrics.record(result.Result.Tier, elapsed)

				if result.Result.Tier == j.expectedTier {
					atomic.AddInt64(&metrics.TierMatches, 1)
				} else {
					atomic.AddInt64(&metrics.TierMismatches, 1)
					if verbose {
						fmt.Printf("✗ %-16s | expected: %-13s | got: %-13s (score %d)\n",
							j.userID, j.expectedTier, result.Result.Tier, result.Result.Score)
					}
				}
			}
		}()
	}

	for r := 0; r < rounds; r++ {
		for _, p := range personas {
			work <- job{userID: p.Profile.UserID, expectedTier: p.ExpectedTier}
		}
	}
	close(work)

	wg.Wait()

	return metrics
}

func scoreUser(client *http.Client, baseURL, userID string) (*ScoreResponse, error) {
	body, err := json.Marshal(ScoreRequest{UserID: userID})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Result == nil {
		return nil, fmt.Errorf("empty result")
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      LOAD TEST RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 REQUEST STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Tier Matches:     %d\n", m.TierMatches)
	fmt.Printf("   Tier Mismatches:  %d\n", m.TierMismatches)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 TIER DISTRIBUTION\n")
	tiers := []domain.Tier{
		domain.TierPreApproved,
		domain.TierApproved,
		domain.TierConditional,
		domain.TierRejected,
		domain.TierFraudRejected,
	}
	for _, tier := range tiers {
		count := m.tierCounts[tier]
		pct := float64(0)
		if m.TotalProcessed > 0 {
			pct = 100 * float64(count) / float64(m.TotalProcessed)
		}
		fmt.Printf("   %-15s %8d (%.1f%%)\n", tier, count, pct)
	}

	accuracy := float64(0)
	scored := m.TierMatches + m.TierMismatches
	if scored > 0 {
		accuracy = float64(m.TierMatches) / float64(scored)
	}
	fmt.Printf("\n🎯 TIER ACCURACY\n")
	fmt.Printf("   Accuracy:   %.4f  (returned tier == designated tier)\n", accuracy)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", tps)
	}
	if len(m.latenciesMs) > 0 {
		sort.Slice(m.latenciesMs, func(i, j int) bool { return m.latenciesMs[i] < m.latenciesMs[j] })
		p50 := m.latenciesMs[len(m.latenciesMs)/2]
		p95 := m.latenciesMs[len(m.latenciesMs)*95/100]
		p99 := m.latenciesMs[len(m.latenciesMs)*99/100]
		fmt.Printf("   p50 / p95 / p99:  %d / %d / %d ms\n", p50, p95, p99)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if m.TierMismatches == 0 && m.TotalErrors == 0 {
		fmt.Println("   ✅ Every persona landed in its designated tier")
	} else if m.TierMismatches > 0 {
		fmt.Println("   ❌ Tier mismatches - check that server and load test use the same seed")
	}
	if m.TotalErrors > 0 {
		fmt.Println("   ⚠️  Request errors - check server logs")
	}

	fmt.Println()
}
