package scoring

// Calibration holds every threshold and lookup table the engine uses.
// Keeping them injectable lets benchmark recalibration happen without
// touching calculation logic; DefaultCalibration supplies the values
// the tiers were tuned against.
type Calibration struct {
	// Fraud rule thresholds.
	Fraud FraudThresholds

	// Coupon-usage bell curve over deal_redemption_rate. Bands are
	// evaluated in order: lower inclusive, upper exclusive.
	CouponBands []CouponBand
	// Score for a redemption rate no band matches.
	CouponDefault float64

	// Per-category refund-to-GMV benchmarks, plus the fallback for
	// categories not listed.
	ReturnBenchmarks map[string]ReturnBenchmark
	ReturnDefault    ReturnBenchmark

	// Payment-mode risk weights, plus the fallback for unknown modes.
	PaymentModeRisk    map[string]float64
	PaymentModeDefault float64
}

// FraudThresholds parameterizes the built-in fraud rules.
type FraudThresholds struct {
	MinAccountAgeDays     int     // new-account rule: age < this auto-rejects
	VelocitySpikeAmount   float64 // INR within the velocity window
	VelocitySpikeHours    float64 // window measured from registration
	CategoryDominancePct  float64 // share of GMV that makes a category dominant
	OutlierMultiple       float64 // outlier txn must exceed this × avg amount
	SinglePatternAgeDays  int     // single-pattern combo applies under this age
	ElectronicsSharePct   float64 // electronics concentration threshold
	ElectronicsMaxTxns    int     // rule applies below this many transactions
	DormantAccountAgeDays int     // dormant rule: older than this with 0 txns
}

// CouponBand maps a redemption-rate range to a sub-score.
type CouponBand struct {
	Min   float64
	Max   float64
	Score float64
}

// ReturnBenchmark holds the normal and warning refund-rate ceilings
// for one merchant category.
type ReturnBenchmark struct {
	Normal  float64
	Warning float64
}

// Factor weights. Purchase consistency carries the most weight as the
// strongest standalone predictor; account maturity the least, since it
// overlaps with consistency and trajectory and exists mainly to set a
// hard floor through its own bracket logic.
const (
	WeightConsistency = 0.25
	WeightEngagement  = 0.20
	WeightTrajectory  = 0.20
	WeightRiskSignals = 0.20
	WeightMaturity    = 0.15
)

// minimumTransactions is the floor below which scoring refuses to run.
// The dampener alone would compress a zero-data user toward the
// neutral 500 ("conditional"), so the guard rejects explicitly.
const minimumTransactions = 3

// DefaultCalibration returns the production threshold set.
func DefaultCalibration() Calibration {
	return Calibration{
		Fraud: FraudThresholds{
			MinAccountAgeDays:     7,
			VelocitySpikeAmount:   20000,
			VelocitySpikeHours:    48,
			CategoryDominancePct:  0.80,
			OutlierMultiple:       2.0,
			SinglePatternAgeDays:  30,
			ElectronicsSharePct:   0.80,
			ElectronicsMaxTxns:    10,
			DormantAccountAgeDays: 90,
		},
		CouponBands: []CouponBand{
			{Min: 0.00, Max: 0.20, Score: 65},
			{Min: 0.20, Max: 0.40, Score: 80},
			{Min: 0.40, Max: 0.60, Score: 100}, // sweet spot
			{Min: 0.60, Max: 0.80, Score: 70},
			{Min: 0.80, Max: 1.01, Score: 40},
		},
		CouponDefault: 50,
		ReturnBenchmarks: map[string]ReturnBenchmark{
			"Fashion":     {Normal: 0.20, Warning: 0.30},
			"Electronics": {Normal: 0.08, Warning: 0.15},
			"Food":        {Normal: 0.03, Warning: 0.07},
			"Travel":      {Normal: 0.05, Warning: 0.10},
			"Health":      {Normal: 0.05, Warning: 0.10},
		},
		ReturnDefault: ReturnBenchmark{Normal: 0.10, Warning: 0.20},
		PaymentModeRisk: map[string]float64{
			"Credit Card": 100,
			"UPI":         90,
			"Debit Card":  85,
			"NetBanking":  70,
			"COD":         30,
		},
		PaymentModeDefault: 50,
	}
}

// couponScore resolves a redemption rate against the bell curve.
func (c *Calibration) couponScore(rate float64) float64 {
	for _, band := range c.CouponBands {
		if rate >= band.Min && rate < band.Max {
			return band.Score
		}
	}
	return c.CouponDefault
}

// returnBenchmark resolves a category's refund benchmark, falling back
// to the default for unlisted categories.
func (c *Calibration) returnBenchmark(category string) ReturnBenchmark {
	if b, ok := c.ReturnBenchmarks[category]; ok {
		return b
	}
	return c.ReturnDefault
}

// paymentRisk resolves a payment mode's risk weight.
func (c *Calibration) paymentRisk(mode string) float64 {
	if w, ok := c.PaymentModeRisk[mode]; ok {
		return w
	}
	return c.PaymentModeDefault
}
