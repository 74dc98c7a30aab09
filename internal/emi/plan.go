package emi

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/talon/internal/domain"
)

// Plan is a confirmed installment plan.
type Plan struct {
	PlanID        string        `json:"plan_id"`
	TxnID         string        `json:"txnid"`
	UserID        string        `json:"user_id"`
	Tenure        int           `json:"emi_tenure"`
	MonthlyEMI    int           `json:"monthly_emi"`
	StartDate     string        `json:"emi_start_date"` // YYYY-MM-DD
	Schedule      []Installment `json:"schedule"`
	TotalAmount   int           `json:"total_amount"`   // sum of schedule amounts
	ProcessingFee int           `json:"processing_fee"`
	TotalCost     int           `json:"total_cost"` // total_amount + processing_fee
	CreatedAt     time.Time     `json:"timestamp"`
}

// CreatePlan confirms an installment plan for an approved amount.
// The tenor must be one the user's rate tier offers; anything else is
// ErrInvalidInput so callers can 400 it.
func CreatePlan(userID string, amount float64, rateTier, tenure int, now time.Time) (*Plan, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	cfg, ok := ConfigFor(rateTier)
	if !ok {
		return nil, fmt.Errorf("%w: rate tier %d has no EMI access", domain.ErrInvalidInput, rateTier)
	}
	validTenure := false
	for _, t := range cfg.Tenors {
		if t == tenure {
			validTenure = true
			break
		}
	}
	if !validTenure {
		return nil, fmt.Errorf("%w: tenure %d not available at rate tier %d", domain.ErrInvalidInput, tenure, rateTier)
	}

	schedule := BuildSchedule(amount, cfg.MonthlyRate, tenure, now)

	totalAmount := 0
	for _, inst := range schedule {
		totalAmount += inst.Amount
	}
	monthlyEMI := int(math.Round(amount / float64(tenure)))
	if len(schedule) > 0 {
		monthlyEMI = schedule[0].Amount
	}

	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return &Plan{
		PlanID:        fmt.Sprintf("EMIPLAN_%s_%s", now.Format("20060102"), suffix),
		TxnID:         uuid.NewString(),
		UserID:        userID,
		Tenure:        tenure,
		MonthlyEMI:    monthlyEMI,
		StartDate:     now.Format("2006-01-02"),
		Schedule:      schedule,
		TotalAmount:   totalAmount,
		ProcessingFee: cfg.ProcessingFee,
		TotalCost:     totalAmount + cfg.ProcessingFee,
		CreatedAt:     now,
	}, nil
}
