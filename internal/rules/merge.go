package rules

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/talon/internal/domain"
)

// MergeIntoFraud folds triggered overlay results into a fraud result.
// Overlay flags append after the built-in flags in the same
// "[ACTION] message" format, and the overall action escalates by
// severity. Monitor-level overlay flags are recorded but never raise
// the action, matching the built-in detector's severity ordering.
// Errored rules are skipped: a broken operator rule must not block a
// decision.
func MergeIntoFraud(fraud domain.FraudResult, results []domain.RuleResult) domain.FraudResult {
	for _, r := range results {
		if r.Err != "" || !r.Triggered {
			continue
		}
		fraud.Flagged = true
		fraud.Flags = append(fraud.Flags, fmt.Sprintf("[%s] %s", strings.ToUpper(string(r.Action)), r.Message))
		if r.Action.Severity() > fraud.Action.Severity() {
			fraud.Action = r.Action
		}
	}
	return fraud
}
