// Package main is a one-shot CLI that runs a single training pass against
// the configured stores. Useful for ops runbooks and migrations where a
// retrain is wanted without going through the API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/serplab/ranktune/internal/config"
	"github.com/serplab/ranktune/internal/middleware"
	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/store"
	"github.com/serplab/ranktune/internal/training"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	limit := flag.Int("limit", 0, "override sample fetch limit (0 = use config)")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := store.EnsureSchema(ctx, db); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	weightStore := store.NewPostgresWeightStore(db, logger)
	sampleStore := store.NewPostgresSampleStore(db, logger)
	ledger := store.NewPostgresSessionLedger(db, logger)

	if _, err := weightStore.Current(ctx); errors.Is(err, store.ErrNoWeights) {
		if err := weightStore.Save(ctx, scoring.DefaultWeights()); err != nil {
			logger.Error("failed to seed default weights", "error", err)
			os.Exit(1)
		}
	}

	fetchLimit := cfg.SampleFetchLimit
	if *limit > 0 {
		fetchLimit = *limit
	}

	batch, err := sampleStore.Recent(ctx, fetchLimit)
	if err != nil {
		logger.Error("failed to load samples", "error", err)
		os.Exit(1)
	}

	policy := training.NewPolicy(training.PolicyConfig{
		Trainer: training.TrainerConfig{
			LearningRate:      cfg.LearningRate,
			Epochs:            cfg.Epochs,
			MinSamples:        cfg.MinTrainingSamples,
			AccuracyThreshold: cfg.AccuracyThreshold,
		},
		Logger: logger,
	}, weightStore, ledger)

	res, err := policy.ForceTrain(ctx, batch)
	if err != nil {
		if errors.Is(err, training.ErrInsufficientSamples) {
			logger.Error("not enough samples collected to train yet",
				"have", len(batch), "need", cfg.MinTrainingSamples)
			os.Exit(2)
		}
		logger.Error("training run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("retrain finished",
		"outcome", res.Outcome.String(),
		"session_id", res.Session.SessionID,
		"samples", res.Session.SamplesUsed,
		"epochs_run", res.Session.EpochsRun,
		"accuracy_before", res.Session.AccuracyBefore,
		"accuracy_after", res.Session.AccuracyAfter,
		"improvement", res.Session.Improvement)
}
