package emi

import (
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

var testNow = time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)

func TestConfigFor(t *testing.T) {
	cfg, ok := ConfigFor(1)
	if !ok {
		t.Fatal("tier 1 must have EMI access")
	}
	if cfg.AnnualRate != 0 || cfg.ProcessingFee != 299 {
		t.Errorf("tier 1 should be 0%% with ₹299 fee, got %.0f%%/%d", cfg.AnnualRate, cfg.ProcessingFee)
	}
	if len(cfg.Tenors) != 4 {
		t.Errorf("tier 1 should offer 4 tenors, got %d", len(cfg.Tenors))
	}

	if _, ok := ConfigFor(0); ok {
		t.Error("rate tier 0 must not have EMI access")
	}
	if _, ok := ConfigFor(4); ok {
		t.Error("unknown tiers must not have EMI access")
	}
}

func TestTenorsShrinkWithTier(t *testing.T) {
	t1, _ := ConfigFor(1)
	t2, _ := ConfigFor(2)
	t3, _ := ConfigFor(3)
	if !(len(t1.Tenors) > len(t2.Tenors) && len(t2.Tenors) > len(t3.Tenors)) {
		t.Errorf("tenor counts should shrink with tier: %d/%d/%d", len(t1.Tenors), len(t2.Tenors), len(t3.Tenors))
	}
}

func TestCalcEMIZeroRate(t *testing.T) {
	if got := CalcEMI(12000, 0, 12); got != 1000 {
		t.Errorf("0%% EMI on 12000/12 should be 1000, got %f", got)
	}
}

func TestCalcEMIReducingBalance(t *testing.T) {
	// 30000 at 14% APR over 6 months: standard formula gives ~5205.75.
	got := CalcEMI(30000, 14.0/12/100, 6)
	if got < 5205 || got > 5207 {
		t.Errorf("expected EMI near 5206, got %f", got)
	}
	// Total repaid must exceed principal at a positive rate.
	if got*6 <= 30000 {
		t.Errorf("interest-bearing plan must cost more than principal, total %f", got*6)
	}
}

func TestBuildSchedulePrincipalReconciles(t *testing.T) {
	for _, months := range []int{3, 6, 9, 12} {
		schedule := BuildSchedule(50000, 14.0/12/100, months, testNow)
		if len(schedule) != months {
			t.Fatalf("%d-month plan produced %d installments", months, len(schedule))
		}

		principalSum := 0
		for _, inst := range schedule {
			principalSum += inst.Principal
			if inst.Amount != inst.Principal+inst.Interest {
				t.Errorf("installment %d: amount %d != principal %d + interest %d",
					inst.Installment, inst.Amount, inst.Principal, inst.Interest)
			}
		}
		if principalSum != 50000 {
			t.Errorf("%d-month plan: principal components sum to %d, want 50000", months, principalSum)
		}
	}
}

func TestBuildScheduleInterestDeclines(t *testing.T) {
	schedule := BuildSchedule(60000, 20.0/12/100, 6, testNow)

	for i := 1; i < len(schedule); i++ {
		if schedule[i].Interest > schedule[i-1].Interest {
			t.Errorf("reducing balance means non-increasing interest, but installment %d charges %d after %d",
				i+1, schedule[i].Interest, schedule[i-1].Interest)
		}
	}
}

func TestBuildScheduleDueDates(t *testing.T) {
	schedule := BuildSchedule(9000, 0, 3, testNow)

	want := []string{"2026-03-26", "2026-04-26", "2026-05-26"}
	for i, inst := range schedule {
		if inst.DueDate != want[i] {
			t.Errorf("installment %d due %s, want %s", i+1, inst.DueDate, want[i])
		}
	}
}

func TestComputeOptionsTierOne(t *testing.T) {
	options := ComputeOptions(30000, 1)
	if len(options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(options))
	}

	for _, opt := range options {
		if opt.TotalInterest != 0 {
			t.Errorf("%d-month tier-1 plan should carry no interest, got %d", opt.Months, opt.TotalInterest)
		}
		if opt.ProcessingFee != 299 {
			t.Errorf("%d-month tier-1 plan should carry the flat fee, got %d", opt.Months, opt.ProcessingFee)
		}
		if opt.TotalPayable != 30299 {
			t.Errorf("%d-month tier-1 plan should total 30299, got %d", opt.Months, opt.TotalPayable)
		}
	}

	if options[0].MonthlyEMI != 10000 {
		t.Errorf("30000 over 3 months should be 10000/month, got %d", options[0].MonthlyEMI)
	}
}

func TestComputeOptionsInterestBearing(t *testing.T) {
	options := ComputeOptions(30000, 2)
	if len(options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(options))
	}

	for _, opt := range options {
		if opt.TotalInterest <= 0 {
			t.Errorf("%d-month tier-2 plan should charge interest, got %d", opt.Months, opt.TotalInterest)
		}
		if opt.ProcessingFee != 0 {
			t.Errorf("tier-2 plans carry no fee, got %d", opt.ProcessingFee)
		}
		if opt.EffectiveAnnualRate != 14 {
			t.Errorf("expected 14%% APR, got %.0f", opt.EffectiveAnnualRate)
		}
	}

	// Longer tenors accrue more interest.
	if !(options[0].TotalInterest < options[1].TotalInterest && options[1].TotalInterest < options[2].TotalInterest) {
		t.Errorf("interest should grow with tenor: %d/%d/%d",
			options[0].TotalInterest, options[1].TotalInterest, options[2].TotalInterest)
	}
}

func TestComputeOptionsNoAccess(t *testing.T) {
	if got := ComputeOptions(30000, 0); got != nil {
		t.Errorf("rate tier 0 should have no options, got %v", got)
	}
}

func TestCreatePlan(t *testing.T) {
	plan, err := CreatePlan("u1", 24000, 2, 6, testNow)
	if err != nil {
		t.Fatalf("failed to create plan: %v", err)
	}

	if plan.Tenure != 6 || len(plan.Schedule) != 6 {
		t.Errorf("expected 6 installments, got %d/%d", plan.Tenure, len(plan.Schedule))
	}
	if plan.MonthlyEMI != plan.Schedule[0].Amount {
		t.Errorf("monthly EMI %d should match first installment %d", plan.MonthlyEMI, plan.Schedule[0].Amount)
	}

	total := 0
	for _, inst := range plan.Schedule {
		total += inst.Amount
	}
	if plan.TotalAmount != total {
		t.Errorf("total amount %d should equal schedule sum %d", plan.TotalAmount, total)
	}
	if plan.TotalCost != plan.TotalAmount+plan.ProcessingFee {
		t.Errorf("total cost %d should be amount %d plus fee %d", plan.TotalCost, plan.TotalAmount, plan.ProcessingFee)
	}
	if plan.StartDate != "2026-02-26" {
		t.Errorf("unexpected start date %s", plan.StartDate)
	}
	if plan.PlanID == "" || plan.TxnID == "" {
		t.Error("plan and txn IDs must be set")
	}
}

func TestCreatePlanValidation(t *testing.T) {
	if _, err := CreatePlan("u1", -5, 1, 3, testNow); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("negative amount should be invalid input, got %v", err)
	}
	if _, err := CreatePlan("u1", 10000, 0, 3, testNow); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("tier without access should be invalid input, got %v", err)
	}
	// 12 months is a tier-1 tenor only.
	if _, err := CreatePlan("u1", 10000, 3, 12, testNow); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unavailable tenor should be invalid input, got %v", err)
	}
}
