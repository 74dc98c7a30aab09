// Package emi computes installment plans for approved credit lines.
// Plans use standard reducing-balance arithmetic; rate and tenor
// availability are keyed by the rate tier the scoring engine assigned.
package emi

import (
	"math"
	"time"
)

// RateConfig holds the lending terms for one rate tier.
type RateConfig struct {
	AnnualRate    float64 // percent
	MonthlyRate   float64 // fraction per month
	ProcessingFee int     // INR, flat
	Tenors        []int   // available plan lengths in months
}

// Rate config keyed by rate tier.
// Tier 1: 0% interest, cost recovered via a flat ₹299 processing fee.
// Tier 2: 14% APR reducing-balance, no fee.
// Tier 3: 20% APR reducing-balance, no fee.
// Tenors shrink as the tier worsens to limit repayment risk.
var rateConfigs = map[int]RateConfig{
	1: {AnnualRate: 0, MonthlyRate: 0, ProcessingFee: 299, Tenors: []int{3, 6, 9, 12}},
	2: {AnnualRate: 14, MonthlyRate: 14.0 / 12 / 100, ProcessingFee: 0, Tenors: []int{3, 6, 9}},
	3: {AnnualRate: 20, MonthlyRate: 20.0 / 12 / 100, ProcessingFee: 0, Tenors: []int{3, 6}},
}

// ConfigFor returns the rate config for a tier. The second return is
// false for tiers without EMI access (0, or anything unknown).
func ConfigFor(rateTier int) (RateConfig, bool) {
	cfg, ok := rateConfigs[rateTier]
	return cfg, ok
}

// Installment is one month of a repayment schedule.
type Installment struct {
	Installment int    `json:"installment"` // 1-indexed
	DueDate     string `json:"due_date"`    // YYYY-MM-DD
	Amount      int    `json:"amount"`      // principal + interest
	Principal   int    `json:"principal"`
	Interest    int    `json:"interest"`
}

// Option summarises one available tenor for a purchase amount.
type Option struct {
	Months              int     `json:"months"`
	MonthlyEMI          int     `json:"monthly_emi"`
	TotalInterest       int     `json:"total_interest"`
	ProcessingFee       int     `json:"processing_fee"`
	TotalPayable        int     `json:"total_payable"`
	EffectiveAnnualRate float64 `json:"effective_annual_rate"`
}

// CalcEMI is the reducing-balance installment formula
// P*r*(1+r)^n / ((1+r)^n - 1), or simply P/n at zero interest.
func CalcEMI(principal, monthlyRate float64, months int) float64 {
	if monthlyRate == 0 {
		return principal / float64(months)
	}
	pow := math.Pow(1+monthlyRate, float64(months))
	return principal * monthlyRate * pow / (pow - 1)
}

// BuildSchedule produces the per-installment schedule. Interest is
// charged on the outstanding balance each month and rounded to whole
// rupees; the final installment clears whatever balance remains so
// the principal components always sum back to the principal.
func BuildSchedule(principal float64, monthlyRate float64, months int, start time.Time) []Installment {
	emi := CalcEMI(principal, monthlyRate, months)
	schedule := make([]Installment, 0, months)
	balance := principal

	for i := 1; i <= months; i++ {
		interest := int(math.Round(balance * monthlyRate))
		var principalPart int
		if i == months {
			principalPart = int(math.Round(balance))
		} else {
			principalPart = int(math.Round(emi - float64(interest)))
		}
		balance = math.Max(0, balance-float64(principalPart))

		schedule = append(schedule, Installment{
			Installment: i,
			DueDate:     start.AddDate(0, i, 0).Format("2006-01-02"),
			Amount:      principalPart + interest,
			Principal:   principalPart,
			Interest:    interest,
		})
	}

	return schedule
}

// ComputeOptions returns every available plan for the amount at the
// given rate tier. Empty for tiers without EMI access.
func ComputeOptions(principal float64, rateTier int) []Option {
	cfg, ok := ConfigFor(rateTier)
	if !ok {
		return nil
	}

	options := make([]Option, 0, len(cfg.Tenors))
	for _, months := range cfg.Tenors {
		if cfg.MonthlyRate == 0 {
			options = append(options, Option{
				Months:              months,
				MonthlyEMI:          int(math.Round(principal / float64(months))),
				TotalInterest:       0,
				ProcessingFee:       cfg.ProcessingFee,
				TotalPayable:        int(principal) + cfg.ProcessingFee,
				EffectiveAnnualRate: 0,
			})
			continue
		}

		emi := CalcEMI(principal, cfg.MonthlyRate, months)
		totalPayable := emi * float64(months)
		options = append(options, Option{
			Months:              months,
			MonthlyEMI:          int(math.Round(emi)),
			TotalInterest:       int(math.Round(totalPayable - principal)),
			ProcessingFee:       0,
			TotalPayable:        int(math.Round(totalPayable)),
			EffectiveAnnualRate: cfg.AnnualRate,
		})
	}
	return options
}
