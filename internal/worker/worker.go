// Package worker provides async score processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/rules"
	"github.com/opensource-finance/talon/internal/scoring"
)

// Worker consumes score requests from the EventBus, runs the scoring
// pipeline, records the decision, and publishes the outcome.
type Worker struct {
	bus     domain.EventBus
	repo    domain.Repository
	cache   domain.Cache
	scorer  *scoring.Engine
	overlay *rules.Engine

	profileTTL time.Duration

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker. The cache and overlay engine
// are optional; pass nil to skip profile caching or overlay rules.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, scorer *scoring.Engine, overlay *rules.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		cache:      cache,
		scorer:     scorer,
		overlay:    overlay,
		profileTTL: 5 * time.Minute,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the score request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScoreRequest, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicScoreRequest,
	)
	return nil
}

// ScoreRequest is the message payload for async score processing.
type ScoreRequest struct {
	UserID  string `json:"userId"`
	TraceID string `json:"traceId,omitempty"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req ScoreRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse score request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.UserID == "" {
		slog.Error("score request without user_id", "message_id", msg.ID)
		return nil
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing score request",
		"user_id", req.UserID,
		"trace_id", traceID,
	)

	// 1. Load inputs
	profile, err := w.loadProfile(ctx, req.UserID)
	if err != nil {
		slog.Error("failed to load profile",
			"user_id", req.UserID,
			"error", err,
		)
		return err
	}

	txns, err := w.repo.GetTransactionsByUser(ctx, req.UserID)
	if err != nil {
		slog.Error("failed to load transactions",
			"user_id", req.UserID,
			"error", err,
		)
		return err
	}

	// 2. Score
	now := time.Now().UTC()
	result := w.scorer.Score(profile, txns, now)

	// 3. Overlay rules merge into the served fraud result
	if w.overlay != nil && w.overlay.RulesCount() > 0 {
		overlayResults, err := w.overlay.EvaluateAll(ctx, profile, now)
		if err != nil {
			slog.Error("overlay evaluation failed",
				"user_id", req.UserID,
				"error", err,
			)
		} else {
			result.FraudFlags = rules.MergeIntoFraud(result.FraudFlags, overlayResults)
		}
	}

	// 4. Record the decision
	decision := &domain.Decision{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Result:    result,
		TraceID:   traceID,
		ScoredAt:  now,
		ProcessMs: time.Since(start).Milliseconds(),
	}
	if err := w.repo.SaveDecision(ctx, decision); err != nil {
		slog.Error("failed to save decision",
			"user_id", req.UserID,
			"error", err,
		)
	}

	// 5. Publish the outcome
	payload, _ := json.Marshal(decision)
	if err := w.bus.Publish(ctx, domain.TopicDecision, payload); err != nil {
		slog.Error("failed to publish decision",
			"user_id", req.UserID,
			"error", err,
		)
	}

	// 6. Flagged applicants also go to the fraud alert topic
	if result.FraudFlags.Flagged {
		if err := w.bus.Publish(ctx, domain.TopicFraudAlert, payload); err != nil {
			slog.Error("failed to publish fraud alert",
				"user_id", req.UserID,
				"error", err,
			)
		}
	}

	slog.Info("score request processed",
		"user_id", req.UserID,
		"score", result.Score,
		"tier", result.Tier,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// loadProfile reads through the cache when one is configured.
func (w *Worker) loadProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if w.cache != nil {
		if profile, err := w.cache.GetProfile(ctx, userID); err == nil && profile != nil {
			return profile, nil
		}
	}

	profile, err := w.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if w.cache != nil {
		_ = w.cache.SetProfile(ctx, userID, profile, w.profileTTL)
	}
	return profile, nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
