package insights

import (
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/fixtures"
	"github.com/opensource-finance/talon/internal/scoring"
)

func TestComputePlatformAverages(t *testing.T) {
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)
	engine := scoring.NewEngine(scoring.DefaultCalibration(), nil)
	profiles, txns := fixtures.Dataset(42, now)

	averages := ComputePlatformAverages(engine, profiles, txns, now)

	// The ghost is fraud-rejected and must not enter the baseline
	if averages.UserCount != 4 {
		t.Fatalf("expected 4 users in the baseline, got %d", averages.UserCount)
	}

	// (214 + 80 + 25 + 60) / 4 = 94.75, rounded to 95
	if averages.AvgTotalTransactions != 95 {
		t.Errorf("expected avg 95 transactions, got %d", averages.AvgTotalTransactions)
	}

	if averages.AvgMonthlySpend <= 0 {
		t.Errorf("expected positive avg monthly spend, got %d", averages.AvgMonthlySpend)
	}
	if averages.AvgDealRedemptionRate <= 0 || averages.AvgDealRedemptionRate > 1 {
		t.Errorf("avg redemption rate out of range: %f", averages.AvgDealRedemptionRate)
	}
	if averages.AvgReturnRate < 0 || averages.AvgReturnRate > 1 {
		t.Errorf("avg return rate out of range: %f", averages.AvgReturnRate)
	}

	factors := averages.AvgFactorScores
	for name, score := range map[string]int{
		"purchaseConsistency": factors.PurchaseConsistency,
		"dealEngagement":      factors.DealEngagement,
		"financialTrajectory": factors.FinancialTrajectory,
		"riskSignals":         factors.RiskSignals,
		"accountMaturity":     factors.AccountMaturity,
	} {
		if score < 0 || score > 100 {
			t.Errorf("factor %s average out of range: %d", name, score)
		}
	}
}

func TestComputePlatformAveragesEmpty(t *testing.T) {
	engine := scoring.NewEngine(scoring.DefaultCalibration(), nil)

	averages := ComputePlatformAverages(engine, nil, nil, time.Now().UTC())

	if averages.UserCount != 0 {
		t.Errorf("expected zero users, got %d", averages.UserCount)
	}
	if averages.AvgMonthlySpend != 0 {
		t.Errorf("expected zero spend average, got %d", averages.AvgMonthlySpend)
	}
}

func TestComputePlatformAveragesAllFraud(t *testing.T) {
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)
	engine := scoring.NewEngine(scoring.DefaultCalibration(), nil)
	personas := fixtures.Personas(42, now)
	ghost := personas[4]

	averages := ComputePlatformAverages(engine,
		[]*domain.UserProfile{ghost.Profile}, ghost.Transactions, now)

	if averages.UserCount != 0 {
		t.Errorf("expected the fraud-rejected profile to be excluded, got %d users", averages.UserCount)
	}
}
