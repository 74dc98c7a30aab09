package domain

import (
	"context"
)

// Repository defines the interface for data persistence. The scoring
// core never touches it; it exists for the serving layer, which loads
// profiles and transactions and records decisions for audit.
type Repository interface {
	// Profile operations
	SaveProfile(ctx context.Context, profile *UserProfile) error
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	ListProfiles(ctx context.Context) ([]*UserProfile, error)

	// Transaction operations
	SaveTransactions(ctx context.Context, txns []*Transaction) error
	GetTransactionsByUser(ctx context.Context, userID string) ([]*Transaction, error)
	CountTransactions(ctx context.Context) (int64, error)

	// Decision audit trail
	SaveDecision(ctx context.Context, decision *Decision) error
	GetDecision(ctx context.Context, decisionID string) (*Decision, error)
	ListDecisionsByUser(ctx context.Context, userID string) ([]*Decision, error)

	// Overlay rule configuration
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
