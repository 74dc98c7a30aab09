package scoring

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

var testNow = time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewEngine(DefaultCalibration(), nil)
}

func baseProfile(userID string, registeredDaysAgo int) *domain.UserProfile {
	reg := testNow.AddDate(0, 0, -registeredDaysAgo)
	return &domain.UserProfile{
		UserID:              userID,
		Name:                "Test User",
		RegistrationDate:    reg.Format(time.RFC3339),
		LastTransactionDate: testNow.Format(time.RFC3339),
	}
}

func txn(userID, category, mode string, amount float64, at time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:               fmt.Sprintf("txn-%s-%d", userID, at.UnixNano()),
		UserID:           userID,
		MerchantName:     "Merchant",
		MerchantCategory: category,
		Amount:           amount,
		PaymentMode:      mode,
		Timestamp:        at.Format(time.RFC3339),
	}
}

func hasFlagWith(result domain.FraudResult, substr string) bool {
	for _, f := range result.Flags {
		if strings.Contains(f, substr) {
			return true
		}
	}
	return false
}

func TestNewAccountAutoReject(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 5)
	p.TotalTransactions = 10
	result := e.CheckFraud(p, nil, testNow)

	if !result.Flagged {
		t.Fatal("expected 5-day-old account to be flagged")
	}
	if result.Action != domain.ActionAutoReject {
		t.Errorf("expected auto-reject, got %s", result.Action)
	}
	if !hasFlagWith(result, "New account") {
		t.Errorf("expected new-account flag, got %v", result.Flags)
	}
}

func TestNewAccountBoundary(t *testing.T) {
	e := testEngine()

	// Exactly 7 days old passes; 6 days is flagged.
	p7 := baseProfile("u7", 7)
	p7.TotalTransactions = 10
	if r := e.CheckFraud(p7, nil, testNow); hasFlagWith(r, "New account") {
		t.Errorf("7-day-old account should not be flagged: %v", r.Flags)
	}

	p6 := baseProfile("u6", 6)
	p6.TotalTransactions = 10
	if r := e.CheckFraud(p6, nil, testNow); !hasFlagWith(r, "New account") {
		t.Error("6-day-old account should be flagged")
	}
}

func TestVelocitySpike(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 10)
	p.TotalTransactions = 3
	p.DealRedemptionRate = 0.3
	reg := p.RegisteredAt()

	txns := []*domain.Transaction{
		txn("u1", domain.CategoryElectronics, domain.PaymentUPI, 15000, reg.Add(10*time.Hour)),
		txn("u1", domain.CategoryFashion, domain.PaymentCreditCard, 8000, reg.Add(30*time.Hour)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if !hasFlagWith(result, "Velocity spike") {
		t.Fatalf("expected velocity flag for ₹23000 in 48h, got %v", result.Flags)
	}
	if result.Action != domain.ActionReview {
		t.Errorf("expected review, got %s", result.Action)
	}
}

func TestVelocitySpikeExactThresholdPasses(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 10)
	p.TotalTransactions = 2
	p.DealRedemptionRate = 0.3
	reg := p.RegisteredAt()

	// Exactly ₹20000 does not exceed the threshold.
	txns := []*domain.Transaction{
		txn("u1", domain.CategoryFashion, domain.PaymentUPI, 12000, reg.Add(5*time.Hour)),
		txn("u1", domain.CategoryFood, domain.PaymentCreditCard, 8000, reg.Add(20*time.Hour)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if hasFlagWith(result, "Velocity spike") {
		t.Errorf("₹20000 exactly should not flag, got %v", result.Flags)
	}
}

func TestVelocityIgnoresLaterTransactions(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 60)
	p.TotalTransactions = 2
	p.DealRedemptionRate = 0.3
	reg := p.RegisteredAt()

	// Big spend well after the 48h window.
	txns := []*domain.Transaction{
		txn("u1", domain.CategoryTravel, domain.PaymentUPI, 50000, reg.Add(100*time.Hour)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if hasFlagWith(result, "Velocity spike") {
		t.Errorf("spend outside window should not flag, got %v", result.Flags)
	}
}

func TestCategoryJump(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 120)
	p.TotalTransactions = 21
	p.DealRedemptionRate = 0.4
	base := testNow.AddDate(0, -2, 0)

	// Fashion carries 87% of GMV (20 × ₹10000), then one Electronics
	// purchase far above the ₹10952 average.
	var txns []*domain.Transaction
	for i := 0; i < 20; i++ {
		txns = append(txns, txn("u1", domain.CategoryFashion, domain.PaymentUPI, 10000, base.AddDate(0, 0, i)))
	}
	txns = append(txns, txn("u1", domain.CategoryElectronics, domain.PaymentUPI, 30000, base.AddDate(0, 0, 25)))
	result := e.CheckFraud(p, txns, testNow)

	if !hasFlagWith(result, "Category jump") {
		t.Fatalf("expected category-jump flag, got %v", result.Flags)
	}
	if result.Action != domain.ActionReview {
		t.Errorf("expected review, got %s", result.Action)
	}
}

func TestSinglePatternCombo(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 20)
	p.TotalTransactions = 4
	p.DealRedemptionRate = 0
	base := testNow.AddDate(0, 0, -15)

	txns := []*domain.Transaction{
		txn("u1", domain.CategoryElectronics, domain.PaymentCOD, 5000, base),
		txn("u1", domain.CategoryElectronics, domain.PaymentCOD, 6000, base.AddDate(0, 0, 3)),
		txn("u1", domain.CategoryElectronics, domain.PaymentCOD, 4000, base.AddDate(0, 0, 6)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if !hasFlagWith(result, "Single-pattern combo") {
		t.Fatalf("expected single-pattern flag, got %v", result.Flags)
	}
	if result.Action != domain.ActionAutoReject {
		t.Errorf("expected auto-reject, got %s", result.Action)
	}
}

func TestSinglePatternNeedsZeroCoupons(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 20)
	p.TotalTransactions = 3
	p.DealRedemptionRate = 0.1
	base := testNow.AddDate(0, 0, -15)

	txns := []*domain.Transaction{
		txn("u1", domain.CategoryElectronics, domain.PaymentCOD, 5000, base),
		txn("u1", domain.CategoryElectronics, domain.PaymentCOD, 6000, base.AddDate(0, 0, 3)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if hasFlagWith(result, "Single-pattern combo") {
		t.Errorf("coupon usage should exempt the pattern, got %v", result.Flags)
	}
}

func TestElectronicsConcentrationMonitorOnly(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 60)
	p.TotalTransactions = 5
	p.DealRedemptionRate = 0.3
	base := testNow.AddDate(0, -1, 0)

	txns := []*domain.Transaction{
		txn("u1", domain.CategoryElectronics, domain.PaymentUPI, 20000, base),
		txn("u1", domain.CategoryElectronics, domain.PaymentCreditCard, 25000, base.AddDate(0, 0, 5)),
		txn("u1", domain.CategoryFood, domain.PaymentUPI, 500, base.AddDate(0, 0, 10)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if !result.Flagged {
		t.Fatal("expected electronics concentration to flag")
	}
	if !hasFlagWith(result, "Electronics concentration") {
		t.Fatalf("expected electronics flag, got %v", result.Flags)
	}
	// Monitor never escalates the overall action.
	if result.Action != domain.ActionNone {
		t.Errorf("monitor-only result should report action none, got %s", result.Action)
	}
}

func TestDormantAccount(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 200)
	p.TotalTransactions = 0
	result := e.CheckFraud(p, nil, testNow)

	if !hasFlagWith(result, "Dormant account") {
		t.Fatalf("expected dormant flag, got %v", result.Flags)
	}
	if result.Action != domain.ActionReview {
		t.Errorf("expected review, got %s", result.Action)
	}
}

func TestDormantBoundary(t *testing.T) {
	e := testEngine()

	// Exactly 90 days does not trigger; the rule needs strictly older.
	p := baseProfile("u1", 90)
	p.TotalTransactions = 0
	if r := e.CheckFraud(p, nil, testNow); hasFlagWith(r, "Dormant account") {
		t.Errorf("90-day-old account should not flag dormant, got %v", r.Flags)
	}
}

func TestCleanProfileNoFlags(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 400)
	p.TotalTransactions = 80
	p.DealRedemptionRate = 0.4
	base := testNow.AddDate(0, -6, 0)

	txns := []*domain.Transaction{
		txn("u1", domain.CategoryFashion, domain.PaymentCreditCard, 3000, base),
		txn("u1", domain.CategoryFood, domain.PaymentUPI, 800, base.AddDate(0, 1, 0)),
		txn("u1", domain.CategoryTravel, domain.PaymentCreditCard, 9000, base.AddDate(0, 2, 0)),
		txn("u1", domain.CategoryHealth, domain.PaymentUPI, 1200, base.AddDate(0, 3, 0)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if result.Flagged {
		t.Errorf("clean profile should not flag, got %v", result.Flags)
	}
	if result.Action != domain.ActionNone {
		t.Errorf("expected action none, got %s", result.Action)
	}
}

func TestFraudIgnoresOtherUsersTransactions(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 10)
	p.TotalTransactions = 0
	p.DealRedemptionRate = 0.3
	reg := p.RegisteredAt()

	// Large early spend, but by a different user.
	txns := []*domain.Transaction{
		txn("u2", domain.CategoryTravel, domain.PaymentUPI, 90000, reg.Add(2*time.Hour)),
	}
	result := e.CheckFraud(p, txns, testNow)

	if hasFlagWith(result, "Velocity spike") {
		t.Errorf("another user's spend must not flag this profile, got %v", result.Flags)
	}
}

func TestFlagFormatting(t *testing.T) {
	e := testEngine()

	p := baseProfile("u1", 3)
	result := e.CheckFraud(p, nil, testNow)

	if len(result.Flags) == 0 {
		t.Fatal("expected at least one flag")
	}
	if !strings.HasPrefix(result.Flags[0], "[AUTO-REJECT] ") {
		t.Errorf("flag should carry an uppercase action prefix, got %q", result.Flags[0])
	}
}
