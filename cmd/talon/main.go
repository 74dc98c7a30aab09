// Talon - BNPL credit scoring from shopping behavior.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/talon/internal/api"
	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/cache"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/fixtures"
	"github.com/opensource-finance/talon/internal/repository"
	"github.com/opensource-finance/talon/internal/rules"
	"github.com/opensource-finance/talon/internal/scoring"
	"github.com/opensource-finance/talon/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("TALON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting talon",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("TALON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Seed the reference personas on an empty database
	if os.Getenv("TALON_SEED_FIXTURES") != "false" {
		if err := seedFixtures(ctx, repo); err != nil {
			slog.Error("failed to seed fixtures", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize the scoring engine. The calibration is fixed; only
	// the overlay rules are configurable at runtime.
	scorer := scoring.NewEngine(scoring.DefaultCalibration(), logger)
	slog.Info("scoring engine initialized")

	// Initialize the overlay rule engine
	overlay, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer overlay.Close()

	// Load overlay rules from the database; fall back to the stock
	// set on a fresh install.
	if err := loadRulesFromDatabase(ctx, repo, overlay); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", overlay.RulesCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.DeployPro || os.Getenv("TALON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, scorer, overlay)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, scorer, overlay, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("talon is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("talon shutdown complete")
}

// seedFixtures loads the reference personas into an empty database so
// a fresh install has scoreable users out of the box.
func seedFixtures(ctx context.Context, repo domain.Repository) error {
	count, err := repo.CountTransactions(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("database already seeded", "transactions", count)
		return nil
	}

	seed := int64(42)
	if env := os.Getenv("TALON_SEED"); env != "" {
		parsed, err := strconv.ParseInt(env, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TALON_SEED: %w", err)
		}
		seed = parsed
	}

	profiles, txns := fixtures.Dataset(seed, time.Now().UTC())
	for _, p := range profiles {
		if err := repo.SaveProfile(ctx, p); err != nil {
			return err
		}
	}
	if err := repo.SaveTransactions(ctx, txns); err != nil {
		return err
	}

	slog.Info("fixtures seeded",
		"seed", seed,
		"profiles", len(profiles),
		"transactions", len(txns),
	)
	return nil
}

// loadRulesFromDatabase loads overlay rules into the engine. A fresh
// database gets the stock rule set persisted and loaded.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	stock := rules.DefaultRules()
	for _, rule := range stock {
		if err := repo.SaveRuleConfig(ctx, rule); err != nil {
			slog.Warn("failed to persist stock rule", "id", rule.ID, "error", err)
		}
	}
	slog.Info("loading stock rules", "count", len(stock))
	return engine.LoadRules(stock)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 TALON                    ║")
	fmt.Println("  ║      BNPL Credit Scoring Engine           ║")
	fmt.Println("  ║   Shopping behavior, underwritten.        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score                        - Score a user")
	fmt.Println("    POST /fraud-check                  - Run fraud detection only")
	fmt.Println("    GET  /profiles/{id}                - Get user profile")
	fmt.Println("    GET  /profiles/{id}/transactions   - Get transaction history")
	fmt.Println("    GET  /profiles/{id}/decisions      - Get decision history")
	fmt.Println("    GET  /decisions/{id}               - Get decision by ID")
	fmt.Println("    GET  /emi-options                  - EMI options for an amount")
	fmt.Println("    POST /emi-plans                    - Confirm an EMI plan")
	fmt.Println("    GET  /platform-averages            - Platform-wide baselines")
	fmt.Println("    GET  /rules                        - List overlay rules")
	fmt.Println("    POST /rules                        - Create an overlay rule")
	fmt.Println("    POST /rules/reload                 - Hot-reload rules")
	fmt.Println("    GET  /health                       - Health check")
	fmt.Println()
}
