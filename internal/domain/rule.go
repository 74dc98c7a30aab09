package domain

// RuleConfig defines an operator-supplied risk-flag rule. These act as
// an overlay on top of the built-in fraud detector: each rule is a CEL
// expression over profile aggregates whose numeric result is mapped to
// a flag severity through bands. The built-in detector never consults
// them; the serving layer merges overlay flags into the served result.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate; must return bool, int, or double.
	Expression string `json:"expression"`

	// Outcome bands for score-to-severity mapping.
	Bands []RuleBand `json:"bands"`

	// Whether rule is active.
	Enabled bool `json:"enabled"`
}

// RuleBand maps a score range to a flag severity and message.
type RuleBand struct {
	LowerLimit *float64    `json:"lowerLimit,omitempty"`
	UpperLimit *float64    `json:"upperLimit,omitempty"`
	Action     FraudAction `json:"action"` // none, monitor, review, auto-reject
	Message    string      `json:"message"`
}

// RuleResult is the output of an overlay rule evaluation.
type RuleResult struct {
	RuleID    string      `json:"ruleId"`
	UserID    string      `json:"userId"`
	Score     float64     `json:"score"`
	Action    FraudAction `json:"action"`
	Message   string      `json:"message"`
	Triggered bool        `json:"triggered"` // false when the matched band is "none"
	Err       string      `json:"err,omitempty"`
}
