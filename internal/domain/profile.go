// Package domain defines the core interfaces and types for Talon.
package domain

import (
	"time"
)

// UserProfile is an immutable snapshot of an applicant's aggregate
// shopping behavior. Aggregates are pre-computed upstream and assumed
// consistent with the transaction list supplied alongside the profile;
// the scoring engine re-derives per-category numbers from the raw
// transactions where it needs them, but never re-derives the totals.
type UserProfile struct {
	UserID           string `json:"user_id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	RegistrationDate string `json:"registration_date"` // ISO-8601

	// Aggregates
	TotalTransactions int     `json:"total_transactions"`
	TotalGMV          float64 `json:"total_gmv"`
	ActiveMonths      int     `json:"active_months"`
	AvgMonthlySpend   float64 `json:"avg_monthly_spend"`

	// Behavior
	CategoriesShopped       []string           `json:"categories_shopped"`
	DealRedemptionRate      float64            `json:"deal_redemption_rate"` // 0-1
	ReturnRate              float64            `json:"return_rate"`          // 0-1
	PaymentModeDistribution map[string]float64 `json:"payment_mode_distribution"`
	FavoriteMerchants       []string           `json:"favorite_merchants"`
	LastTransactionDate     string             `json:"last_transaction_date"`

	// Trend: 12 monthly GMV totals, chronological, zero = inactive month.
	GMVTrend12M []float64 `json:"gmv_trend_12m"`
}

// RegisteredAt parses the registration date. A zero time is returned
// for malformed input; callers treat that as "registered long ago"
// rather than failing.
func (p *UserProfile) RegisteredAt() time.Time {
	return parseWhen(p.RegistrationDate)
}

// LastTransactionAt parses the last transaction date.
func (p *UserProfile) LastTransactionAt() time.Time {
	return parseWhen(p.LastTransactionDate)
}

func parseWhen(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

// Transaction is a single purchase record attributed to a user.
type Transaction struct {
	ID                string  `json:"transaction_id"`
	UserID            string  `json:"user_id"`
	MerchantName      string  `json:"merchant_name"`
	MerchantCategory  string  `json:"merchant_category"`
	Subcategory       string  `json:"subcategory"`
	Amount            float64 `json:"transaction_amount"` // INR
	CouponUsed        bool    `json:"coupon_used"`
	CouponDiscountPct float64 `json:"coupon_discount_percent"`
	PaymentMode       string  `json:"payment_mode"`
	ReturnFlag        bool    `json:"return_flag"`
	RefundAmount      float64 `json:"refund_amount"`
	Timestamp         string  `json:"timestamp"` // ISO-8601 with offset
	DeviceType        string  `json:"device_type"`
}

// OccurredAt parses the transaction timestamp.
func (t *Transaction) OccurredAt() time.Time {
	return parseWhen(t.Timestamp)
}

// Payment mode names used by the risk table. The table carries a
// default for anything not listed, so these are not a closed set.
const (
	PaymentCreditCard = "Credit Card"
	PaymentUPI        = "UPI"
	PaymentDebitCard  = "Debit Card"
	PaymentNetBanking = "NetBanking"
	PaymentCOD        = "COD"
)

// Merchant categories with calibrated benchmarks.
const (
	CategoryFashion     = "Fashion"
	CategoryTravel      = "Travel"
	CategoryFood        = "Food"
	CategoryElectronics = "Electronics"
	CategoryHealth      = "Health"
)
