package rules

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

var testNow = time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)

func testProfile() *domain.UserProfile {
	return &domain.UserProfile{
		UserID:              "u1",
		RegistrationDate:    testNow.AddDate(-1, 0, 0).Format(time.RFC3339),
		TotalTransactions:   80,
		TotalGMV:            120000,
		ActiveMonths:        10,
		AvgMonthlySpend:     12000,
		DealRedemptionRate:  0.4,
		ReturnRate:          0.05,
		CategoriesShopped:   []string{"Fashion", "Food", "Travel"},
		LastTransactionDate: testNow.AddDate(0, 0, -3).Format(time.RFC3339),
		PaymentModeDistribution: map[string]float64{
			domain.PaymentUPI:        0.6,
			domain.PaymentCreditCard: 0.4,
		},
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "test-rule-001",
		Name:       "Test Rule",
		Expression: "return_rate > 0.3",
		Bands:      []domain.RuleBand{},
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "invalid-rule",
		Name:       "Invalid Rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestEvaluateBooleanRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "stale-check",
		Name:       "Stale Activity",
		Expression: "days_since_last_txn > 60",
		Bands: []domain.RuleBand{
			{LowerLimit: ptr(1.0), UpperLimit: nil, Action: domain.ActionReview, Message: "Stale activity"},
		},
		Enabled: true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	fresh := testProfile()
	results, err := engine.EvaluateAll(context.Background(), fresh, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Triggered {
		t.Error("3-day-old activity should not trigger the stale rule")
	}

	stale := testProfile()
	stale.LastTransactionDate = testNow.AddDate(0, 0, -90).Format(time.RFC3339)
	results, _ = engine.EvaluateAll(context.Background(), stale, testNow)
	if !results[0].Triggered {
		t.Error("90-day-old activity should trigger the stale rule")
	}
	if results[0].Action != domain.ActionReview {
		t.Errorf("expected review, got %s", results[0].Action)
	}
	if results[0].Message != "Stale activity" {
		t.Errorf("unexpected message %q", results[0].Message)
	}
}

func TestEvaluateNumericBands(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "return-bands",
		Name:       "Return Rate Bands",
		Expression: "return_rate",
		Bands: []domain.RuleBand{
			{LowerLimit: ptr(0.0), UpperLimit: ptr(0.25), Action: domain.ActionNone, Message: "Within norms"},
			{LowerLimit: ptr(0.25), UpperLimit: ptr(0.40), Action: domain.ActionMonitor, Message: "Above norms"},
			{LowerLimit: ptr(0.40), UpperLimit: nil, Action: domain.ActionReview, Message: "Far above norms"},
		},
		Enabled: true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	cases := []struct {
		rate      float64
		action    domain.FraudAction
		triggered bool
	}{
		{0.05, domain.ActionNone, false},
		{0.25, domain.ActionMonitor, true},
		{0.39, domain.ActionMonitor, true},
		{0.40, domain.ActionReview, true},
		{0.90, domain.ActionReview, true},
	}
	for _, tc := range cases {
		p := testProfile()
		p.ReturnRate = tc.rate
		results, err := engine.EvaluateAll(context.Background(), p, testNow)
		if err != nil {
			t.Fatalf("evaluation failed: %v", err)
		}
		if results[0].Action != tc.action {
			t.Errorf("rate %.2f: expected %s, got %s", tc.rate, tc.action, results[0].Action)
		}
		if results[0].Triggered != tc.triggered {
			t.Errorf("rate %.2f: expected triggered=%t", tc.rate, tc.triggered)
		}
	}
}

func TestEvaluateProfileMapAccess(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "map-access",
		Name:       "Profile Map Access",
		Expression: `profile["total_gmv"] > 100000.0`,
		Bands: []domain.RuleBand{
			{LowerLimit: ptr(1.0), UpperLimit: nil, Action: domain.ActionMonitor, Message: "High lifetime GMV"},
		},
		Enabled: true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), testProfile(), testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if !results[0].Triggered {
		t.Error("expected map-access rule to trigger on 120000 GMV")
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "validate-only",
		Expression: "total_transactions > 10",
		Enabled:    true,
	}
	if err := engine.ValidateRule(rule); err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("validate must not load, got %d rules", engine.RulesCount())
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadRules(DefaultRules()); err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if engine.RulesCount() != len(DefaultRules()) {
		t.Fatalf("expected %d rules, got %d", len(DefaultRules()), engine.RulesCount())
	}

	replacement := []*domain.RuleConfig{
		{ID: "only-rule", Expression: "active_months < 2", Enabled: true},
		{ID: "disabled-rule", Expression: "active_months < 2", Enabled: false},
	}
	if err := engine.ReloadRules(replacement); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
}

func TestBrokenRuleDoesNotBlockOthers(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	// Integer division by a zero-able variable errors at eval time
	// for the ghost profile but must not poison the batch.
	bad := &domain.RuleConfig{
		ID:         "divides",
		Expression: "100 / total_transactions > 5",
		Bands: []domain.RuleBand{
			{LowerLimit: ptr(1.0), UpperLimit: nil, Action: domain.ActionMonitor, Message: "High average ticket"},
		},
		Enabled: true,
	}
	good := &domain.RuleConfig{
		ID:         "always",
		Expression: "true",
		Bands: []domain.RuleBand{
			{LowerLimit: ptr(1.0), UpperLimit: nil, Action: domain.ActionMonitor, Message: "Always on"},
		},
		Enabled: true,
	}
	if err := engine.LoadRules([]*domain.RuleConfig{bad, good}); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	p := testProfile()
	p.TotalTransactions = 0
	p.TotalGMV = 0

	results, err := engine.EvaluateAll(context.Background(), p, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var sawError, sawTriggered bool
	for _, r := range results {
		if r.Err != "" {
			sawError = true
		}
		if r.RuleID == "always" && r.Triggered {
			sawTriggered = true
		}
	}
	if !sawError {
		t.Error("expected the dividing rule to error on zero transactions")
	}
	if !sawTriggered {
		t.Error("expected the healthy rule to still trigger")
	}
}

func TestMergeIntoFraud(t *testing.T) {
	base := domain.FraudResult{
		Flagged: true,
		Flags:   []string{"[REVIEW] Velocity spike: ₹25000 spent in first 48hrs"},
		Action:  domain.ActionReview,
	}

	results := []domain.RuleResult{
		{RuleID: "r1", Triggered: true, Action: domain.ActionAutoReject, Message: "Operator block"},
		{RuleID: "r2", Triggered: false, Action: domain.ActionNone, Message: "not matched"},
		{RuleID: "r3", Triggered: true, Action: domain.ActionMonitor, Message: "Watch this one"},
		{RuleID: "r4", Err: "evaluation error: boom", Action: domain.ActionNone},
	}

	merged := MergeIntoFraud(base, results)

	if len(merged.Flags) != 3 {
		t.Fatalf("expected 3 flags, got %d: %v", len(merged.Flags), merged.Flags)
	}
	if merged.Action != domain.ActionAutoReject {
		t.Errorf("expected escalation to auto-reject, got %s", merged.Action)
	}
	if merged.Flags[1] != "[AUTO-REJECT] Operator block" {
		t.Errorf("unexpected flag formatting: %q", merged.Flags[1])
	}
}

func TestMergeMonitorNeverEscalates(t *testing.T) {
	clean := domain.FraudResult{Action: domain.ActionNone}

	merged := MergeIntoFraud(clean, []domain.RuleResult{
		{RuleID: "r1", Triggered: true, Action: domain.ActionMonitor, Message: "Watch"},
	})

	if !merged.Flagged {
		t.Error("monitor flag should set Flagged")
	}
	if merged.Action != domain.ActionNone {
		t.Errorf("monitor must not escalate the action, got %s", merged.Action)
	}
}

func TestDefaultRulesCompile(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	for _, cfg := range DefaultRules() {
		if err := engine.ValidateRule(cfg); err != nil {
			t.Errorf("default rule %s does not compile: %v", cfg.ID, err)
		}
	}
}
