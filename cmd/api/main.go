// Package main is the entry point for the ranktune API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/serplab/ranktune/internal/api"
	"github.com/serplab/ranktune/internal/config"
	"github.com/serplab/ranktune/internal/health"
	"github.com/serplab/ranktune/internal/jobs"
	"github.com/serplab/ranktune/internal/middleware"
	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/store"
	"github.com/serplab/ranktune/internal/training"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("RankTune API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	// Storage
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

	ctx := context.Background()
	if err := store.EnsureSchema(ctx, db); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	sampleStore := store.NewPostgresSampleStore(db, logger)
	ledger := store.NewPostgresSessionLedger(db, logger)

	// The weight vector lives in Redis when configured, for low-latency
	// scoring reads; otherwise in Postgres next to everything else.
	var weightStore training.WeightStore = store.NewPostgresWeightStore(db, logger)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}()
		weightStore = store.NewRedisWeightStore(redisClient, "")
		logger.Info("using redis weight store", "addr", cfg.RedisAddr)
	}

	// Seed the documented defaults so scoring works before the first
	// training run.
	if _, err := weightStore.Current(ctx); errors.Is(err, store.ErrNoWeights) {
		if err := weightStore.Save(ctx, scoring.DefaultWeights()); err != nil {
			logger.Error("failed to seed default weights", "error", err)
			os.Exit(1)
		}
		logger.Info("seeded default weight vector")
	} else if err != nil {
		logger.Error("failed to load weight vector", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	trainingMetrics := training.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for name, reg := range map[string]interface {
		Register(prometheus.Registerer) error
	}{
		"http":     httpMetrics,
		"training": trainingMetrics,
		"jobs":     jobMetrics,
	} {
		if err := reg.Register(registry); err != nil {
			logger.Error("failed to register metrics", "collector", name, "error", err)
			os.Exit(1)
		}
	}

	// Training policy and background retrain job
	policy := training.NewPolicy(training.PolicyConfig{
		Trainer: training.TrainerConfig{
			LearningRate:      cfg.LearningRate,
			Epochs:            cfg.Epochs,
			MinSamples:        cfg.MinTrainingSamples,
			AccuracyThreshold: cfg.AccuracyThreshold,
		},
		Logger:  logger,
		Metrics: trainingMetrics,
	}, weightStore, ledger)

	retrainJob := training.NewRetrainJob(training.RetrainJobConfig{
		Interval:   cfg.RetrainInterval,
		FetchLimit: cfg.SampleFetchLimit,
		Logger:     logger,
		JobMetrics: jobMetrics,
	}, policy, sampleStore)

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	if err := retrainJob.Start(jobCtx); err != nil {
		logger.Error("failed to start retrain job", "error", err)
		os.Exit(1)
	}
	defer retrainJob.Stop()

	// Handlers
	sampleHandlers := api.NewSampleHandlers(sampleStore, weightStore, retrainJob, cfg.MinTrainingSamples, logger)
	trainingHandlers := api.NewTrainingHandlers(policy, weightStore, sampleStore, ledger, cfg.SampleFetchLimit, logger)

	healthConfig := api.HealthHandlersConfig{DBChecker: health.NewDBChecker(db)}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	ingestLimiter := middleware.RateLimiter(
		middleware.NewInMemoryRateLimitStore(),
		middleware.RateLimitConfig{
			RequestsPerWindow: cfg.IngestRatePerMinute,
			WindowDuration:    time.Minute,
		},
		middleware.IPKeyFunc(),
	)

	mux := http.NewServeMux()
	mux.Handle("/samples", ingestLimiter(http.HandlerFunc(sampleHandlers.AddSample)))
	mux.HandleFunc("/train", trainingHandlers.ForceTrain)
	mux.HandleFunc("/weights", trainingHandlers.GetWeights)
	mux.HandleFunc("/sessions", trainingHandlers.ListSessions)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Apply middleware: RequestID -> Logging -> HTTPMetrics
	handler := middleware.RequestID(middleware.Logging(logger)(middleware.HTTPMetrics(httpMetrics)(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // forced retrains block for the run duration
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
