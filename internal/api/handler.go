package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/emi"
	"github.com/opensource-finance/talon/internal/insights"
	"github.com/opensource-finance/talon/internal/rules"
	"github.com/opensource-finance/talon/internal/scoring"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	scorer     *scoring.Engine
	overlay    *rules.Engine
	version    string
	profileTTL time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, scorer *scoring.Engine, overlay *rules.Engine, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		scorer:     scorer,
		overlay:    overlay,
		version:    version,
		profileTTL: 5 * time.Minute,
	}
}

// ScoreRequest is the request body for POST /score.
type ScoreRequest struct {
	UserID string `json:"userId"`
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	DecisionID string              `json:"decisionId"`
	UserID     string              `json:"userId"`
	Result     *domain.ScoreResult `json:"result"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Score handles POST /score requests. Every call recomputes from the
// stored profile and transaction history; only inputs are cached.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}

	profile, err := h.loadProfile(ctx, req.UserID)
	if err != nil {
		h.writeLookupError(w, "profile", req.UserID, err)
		return
	}

	txns, err := h.repo.GetTransactionsByUser(ctx, req.UserID)
	if err != nil {
		slog.Error("failed to load transactions", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transactions",
		})
		return
	}

	now := time.Now().UTC()
	result := h.scorer.Score(profile, txns, now)

	// Custom overlay flags merge into the served fraud result
	if h.overlay != nil && h.overlay.RulesCount() > 0 {
		overlayResults, err := h.overlay.EvaluateAll(ctx, profile, now)
		if err != nil {
			slog.Error("overlay evaluation failed", "user_id", req.UserID, "error", err)
		} else {
			result.FraudFlags = rules.MergeIntoFraud(result.FraudFlags, overlayResults)
		}
	}

	decision := &domain.Decision{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Result:    result,
		TraceID:   traceID,
		ScoredAt:  now,
		ProcessMs: time.Since(start).Milliseconds(),
	}
	if err := h.repo.SaveDecision(ctx, decision); err != nil {
		slog.Error("failed to save decision", "user_id", req.UserID, "error", err)
	}

	if h.bus != nil {
		payload, _ := json.Marshal(decision)
		if err := h.bus.Publish(ctx, domain.TopicDecision, payload); err != nil {
			slog.Error("failed to publish decision", "user_id", req.UserID, "error", err)
		}
		if result.FraudFlags.Flagged {
			if err := h.bus.Publish(ctx, domain.TopicFraudAlert, payload); err != nil {
				slog.Error("failed to publish fraud alert", "user_id", req.UserID, "error", err)
			}
		}
	}

	resp := ScoreResponse{
		DecisionID: decision.ID,
		UserID:     req.UserID,
		Result:     result,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// FraudCheck handles POST /fraud-check requests. It runs only the
// fraud detector, without scoring, tiering, or decision persistence.
func (h *Handler) FraudCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}

	profile, err := h.loadProfile(ctx, req.UserID)
	if err != nil {
		h.writeLookupError(w, "profile", req.UserID, err)
		return
	}

	txns, err := h.repo.GetTransactionsByUser(ctx, req.UserID)
	if err != nil {
		slog.Error("failed to load transactions", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transactions",
		})
		return
	}

	now := time.Now().UTC()
	fraud := scoring.CheckFraudFlags(profile, txns, now)

	if h.overlay != nil && h.overlay.RulesCount() > 0 {
		overlayResults, err := h.overlay.EvaluateAll(ctx, profile, now)
		if err != nil {
			slog.Error("overlay evaluation failed", "user_id", req.UserID, "error", err)
		} else {
			fraud = rules.MergeIntoFraud(fraud, overlayResults)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":     req.UserID,
		"fraudFlags": fraud,
	})
}

// GetProfile retrieves a user profile by ID.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "id")

	profile, err := h.loadProfile(ctx, userID)
	if err != nil {
		h.writeLookupError(w, "profile", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// GetTransactions retrieves a user's transaction history in
// chronological order.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "id")

	// Confirm the user exists so missing users 404 instead of
	// returning an empty list.
	if _, err := h.loadProfile(ctx, userID); err != nil {
		h.writeLookupError(w, "profile", userID, err)
		return
	}

	txns, err := h.repo.GetTransactionsByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to load transactions", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":       userID,
		"transactions": txns,
		"count":        len(txns),
	})
}

// GetDecision retrieves a persisted scoring decision by ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	decisionID := chi.URLParam(r, "id")

	decision, err := h.repo.GetDecision(ctx, decisionID)
	if err != nil {
		h.writeLookupError(w, "decision", decisionID, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// ListDecisions returns a user's decision history, newest first.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "id")

	decisions, err := h.repo.ListDecisionsByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to list decisions", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    userID,
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// EMIOptions handles GET /emi-options?amount=12000&rateTier=2.
func (h *Handler) EMIOptions(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be a positive number",
		})
		return
	}

	rateTier, err := strconv.Atoi(r.URL.Query().Get("rateTier"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rateTier must be an integer",
		})
		return
	}
	if _, ok := emi.ConfigFor(rateTier); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rate tier has no EMI access",
		})
		return
	}

	options := emi.ComputeOptions(amount, rateTier)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":   amount,
		"rateTier": rateTier,
		"options":  options,
	})
}

// CreatePlanRequest is the request body for POST /emi-plans.
type CreatePlanRequest struct {
	UserID   string  `json:"userId"`
	Amount   float64 `json:"amount"`
	RateTier int     `json:"rateTier"`
	Tenure   int     `json:"tenure"`
}

// CreatePlan confirms an installment plan for an approved amount.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}

	plan, err := emi.CreatePlan(req.UserID, req.Amount, req.RateTier, req.Tenure, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to create plan", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to create plan",
		})
		return
	}

	slog.Info("emi plan created",
		"plan_id", plan.PlanID,
		"user_id", req.UserID,
		"tenure", plan.Tenure,
	)
	writeJSON(w, http.StatusCreated, plan)
}

// PlatformAverages computes platform-wide averages over every stored
// profile. Prospective users see these as a comparison baseline.
func (h *Handler) PlatformAverages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profiles, err := h.repo.ListProfiles(ctx)
	if err != nil {
		slog.Error("failed to list profiles", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list profiles",
		})
		return
	}

	var txns []*domain.Transaction
	for _, p := range profiles {
		userTxns, err := h.repo.GetTransactionsByUser(ctx, p.UserID)
		if err != nil {
			slog.Error("failed to load transactions", "user_id", p.UserID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load transactions",
			})
			return
		}
		txns = append(txns, userTxns...)
	}

	averages := insights.ComputePlatformAverages(h.scorer, profiles, txns, time.Now().UTC())

	writeJSON(w, http.StatusOK, averages)
}

// ListRules returns the overlay rules currently loaded in the engine.
// Rules load from the database at startup and reload via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.overlay.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves an overlay rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.overlay.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an overlay rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule validates an overlay rule, loads it into the engine, and
// persists it.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled,
	}

	// Loading doubles as CEL validation
	if err := h.overlay.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
		slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": ruleConfig,
	})
}

// ReloadRules reloads all overlay rules from the database into the
// engine without a server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.overlay.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// loadProfile reads through the cache when one is configured.
func (h *Handler) loadProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}

	if h.cache != nil {
		if profile, err := h.cache.GetProfile(ctx, userID); err == nil && profile != nil {
			return profile, nil
		}
	}

	profile, err := h.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.SetProfile(ctx, userID, profile, h.profileTTL)
	}
	return profile, nil
}

func (h *Handler) writeLookupError(w http.ResponseWriter, kind, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": kind + " not found",
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": kind + " id is required",
		})
	default:
		slog.Error("failed to load "+kind, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load " + kind,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
