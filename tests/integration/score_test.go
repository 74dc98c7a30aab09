//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Talon credit
// scoring engine.
//
// These tests verify the COMPLETE scoring pipeline against a running
// server:
//
//	Profile + Transactions → Fraud Rules → Factors → Confidence → Tier
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server must be running with the default fixture seed:
//
//	go run cmd/talon/main.go
//
// On an empty database it seeds five reference personas, each designed
// to land in one outcome band:
//
// | User ID        | Shape                           | Designated Tier |
// |----------------|---------------------------------|-----------------|
// | user_growth    | 19 months, rising GMV           | pre-approved    |
// | user_steady    | 13 months, flat modest GMV      | approved        |
// | user_thinfile  | 3 months, little history        | conditional     |
// | user_declining | 14 months, collapsing GMV       | rejected        |
// | user_ghost     | 4 days old, two COD electronics | fraud-rejected  |
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("TALON_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Talon's API contract)
// ============================================================================

// ScoreRequest is the body sent to POST /score
type ScoreRequest struct {
	UserID string `json:"userId"`
}

// ScoreResult mirrors the result block of the score response
type ScoreResult struct {
	Score          int     `json:"score"`
	Tier           string  `json:"tier"`
	CreditLimit    int     `json:"creditLimit"`
	RateTier       int     `json:"rateTier"`
	DataConfidence float64 `json:"dataConfidence"`
	FraudFlags     struct {
		Flagged bool     `json:"flagged"`
		Flags   []string `json:"flags"`
		Action  string   `json:"action"`
	} `json:"fraudFlags"`
}

// ScoreResponse is what POST /score returns
type ScoreResponse struct {
	DecisionID string      `json:"decisionId"`
	UserID     string      `json:"userId"`
	Result     ScoreResult `json:"result"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func postJSON(t *testing.T, config TestConfig, path string, reqBody, out interface{}) int {
	t.Helper()

	body, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(config.BaseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request to %s failed (is the server running?): %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response from %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, config TestConfig, path string, out interface{}) int {
	t.Helper()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(config.BaseURL + path)
	if err != nil {
		t.Fatalf("request to %s failed (is the server running?): %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response from %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func scoreUser(t *testing.T, config TestConfig, userID string) ScoreResponse {
	t.Helper()
	var resp ScoreResponse
	status := postJSON(t, config, "/score", ScoreRequest{UserID: userID}, &resp)
	if status != http.StatusOK {
		t.Fatalf("POST /score for %s returned %d", userID, status)
	}
	return resp
}

// ============================================================================
// Tests
// ============================================================================

func TestServerHealth(t *testing.T) {
	config := getTestConfig()

	var health map[string]string
	status := getJSON(t, config, "/health", &health)
	if status != http.StatusOK {
		t.Fatalf("GET /health returned %d", status)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", health["status"])
	}
}

func TestPersonaTiers(t *testing.T) {
	config := getTestConfig()

	cases := []struct {
		userID string
		tier   string
	}{
		{"user_growth", "pre-approved"},
		{"user_steady", "approved"},
		{"user_thinfile", "conditional"},
		{"user_declining", "rejected"},
		{"user_ghost", "fraud-rejected"},
	}

	for _, tc := range cases {
		t.Run(tc.userID, func(t *testing.T) {
			resp := scoreUser(t, config, tc.userID)

			if resp.Result.Tier != tc.tier {
				t.Errorf("expected tier %s, got %s (score %d)", tc.tier, resp.Result.Tier, resp.Result.Score)
			}
			if resp.DecisionID == "" {
				t.Error("expected a decision ID")
			}
			if resp.Metadata.TraceID == "" {
				t.Error("expected a trace ID")
			}
		})
	}
}

func TestScoreDeterminism(t *testing.T) {
	config := getTestConfig()

	first := scoreUser(t, config, "user_steady")
	second := scoreUser(t, config, "user_steady")

	if first.Result.Score != second.Result.Score {
		t.Errorf("same inputs must score identically: %d vs %d", first.Result.Score, second.Result.Score)
	}
	if first.DecisionID == second.DecisionID {
		t.Error("each call must record a fresh decision")
	}
}

func TestDecisionAuditTrail(t *testing.T) {
	config := getTestConfig()

	scored := scoreUser(t, config, "user_growth")

	var decision struct {
		ID     string      `json:"id"`
		UserID string      `json:"userId"`
		Result ScoreResult `json:"result"`
	}
	status := getJSON(t, config, "/decisions/"+scored.DecisionID, &decision)
	if status != http.StatusOK {
		t.Fatalf("GET /decisions/%s returned %d", scored.DecisionID, status)
	}
	if decision.UserID != "user_growth" {
		t.Errorf("expected user_growth, got %s", decision.UserID)
	}
	if decision.Result.Score != scored.Result.Score {
		t.Errorf("persisted score %d differs from served score %d", decision.Result.Score, scored.Result.Score)
	}
}

func TestFraudCheckEndpoint(t *testing.T) {
	config := getTestConfig()

	var resp struct {
		FraudFlags struct {
			Flagged bool     `json:"flagged"`
			Flags   []string `json:"flags"`
			Action  string   `json:"action"`
		} `json:"fraudFlags"`
	}
	status := postJSON(t, config, "/fraud-check", ScoreRequest{UserID: "user_ghost"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("POST /fraud-check returned %d", status)
	}

	if !resp.FraudFlags.Flagged {
		t.Fatal("expected the ghost to be flagged")
	}
	if resp.FraudFlags.Action != "auto-reject" {
		t.Errorf("expected auto-reject, got %s", resp.FraudFlags.Action)
	}
	if len(resp.FraudFlags.Flags) < 2 {
		t.Errorf("expected multiple flags, got %v", resp.FraudFlags.Flags)
	}
}

func TestEMIOptionsForApprovedUser(t *testing.T) {
	config := getTestConfig()

	scored := scoreUser(t, config, "user_growth")
	if scored.Result.RateTier != 1 {
		t.Fatalf("expected rate tier 1, got %d", scored.Result.RateTier)
	}

	path := fmt.Sprintf("/emi-options?amount=20000&rateTier=%d", scored.Result.RateTier)
	var resp struct {
		Options []struct {
			Months       int `json:"months"`
			MonthlyEMI   int `json:"monthly_emi"`
			TotalPayable int `json:"total_payable"`
		} `json:"options"`
	}
	status := getJSON(t, config, path, &resp)
	if status != http.StatusOK {
		t.Fatalf("GET %s returned %d", path, status)
	}
	if len(resp.Options) != 4 {
		t.Fatalf("expected 4 tenor options at tier 1, got %d", len(resp.Options))
	}
	// Zero interest: every tenor totals principal plus the flat fee
	for _, opt := range resp.Options {
		if opt.TotalPayable != 20299 {
			t.Errorf("tenor %d: expected total 20299, got %d", opt.Months, opt.TotalPayable)
		}
	}
}

func TestPlatformAverages(t *testing.T) {
	config := getTestConfig()

	var resp struct {
		UserCount int `json:"userCount"`
	}
	status := getJSON(t, config, "/platform-averages", &resp)
	if status != http.StatusOK {
		t.Fatalf("GET /platform-averages returned %d", status)
	}
	// The ghost is fraud-rejected and excluded from the baseline
	if resp.UserCount != 4 {
		t.Errorf("expected 4 users in the baseline, got %d", resp.UserCount)
	}
}

func TestOverlayRuleLifecycle(t *testing.T) {
	config := getTestConfig()

	// The stock overlay rules load on a fresh install
	var list struct {
		Count int `json:"count"`
	}
	status := getJSON(t, config, "/rules", &list)
	if status != http.StatusOK {
		t.Fatalf("GET /rules returned %d", status)
	}
	if list.Count == 0 {
		t.Error("expected stock overlay rules to be loaded")
	}

	// Reload is idempotent
	var reload struct {
		Count int `json:"count"`
	}
	status = postJSON(t, config, "/rules/reload", nil, &reload)
	if status != http.StatusOK {
		t.Fatalf("POST /rules/reload returned %d", status)
	}
}
