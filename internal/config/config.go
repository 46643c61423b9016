// Package config provides configuration loading and validation for the
// ranktune service. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the ranktune service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage. DatabaseURL is required; RedisAddr is optional and, when
	// set, moves the weight vector into Redis for low-latency scoring reads.
	DatabaseURL string `koanf:"database_url"`
	RedisAddr   string `koanf:"redis_addr"`

	// Training
	MinTrainingSamples int           `koanf:"min_training_samples"`
	LearningRate       float64       `koanf:"learning_rate"`
	Epochs             int           `koanf:"epochs"`
	AccuracyThreshold  int           `koanf:"accuracy_threshold"`
	SampleFetchLimit   int           `koanf:"sample_fetch_limit"`
	RetrainInterval    time.Duration `koanf:"retrain_interval"`

	// Rate limiting for the sample ingest endpoint.
	IngestRatePerMinute int `koanf:"ingest_rate_per_minute"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL      = errors.New("DATABASE_URL is required")
	ErrInvalidPort             = errors.New("PORT must be a valid integer")
	ErrInvalidMinSamples       = errors.New("MIN_TRAINING_SAMPLES must be >= 1")
	ErrInvalidLearningRate     = errors.New("LEARNING_RATE must be > 0")
	ErrInvalidEpochs           = errors.New("EPOCHS must be >= 1")
	ErrInvalidRetrainInterval  = errors.New("RETRAIN_INTERVAL must be a positive duration")
	ErrInvalidSampleFetchLimit = errors.New("SAMPLE_FETCH_LIMIT must be >= 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort = 8080
	DefaultEnv  = "development"

	// DefaultMinTrainingSamples mirrors the observed production behavior:
	// training fires from the very first sample even though a single pair
	// has no meaningful rank correlation. Raising it is a product decision,
	// not a code one.
	DefaultMinTrainingSamples = 1

	DefaultLearningRate        = 0.01
	DefaultEpochs              = 50
	DefaultAccuracyThreshold   = 3
	DefaultSampleFetchLimit    = 500
	DefaultRetrainInterval     = 30 * time.Second
	DefaultIngestRatePerMinute = 120
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid). If a config file path is provided and the file cannot be loaded,
// an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"RANKTUNE_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	minSamples, err := getEnvIntOrDefault("MIN_TRAINING_SAMPLES", k.Int("min_training_samples"), DefaultMinTrainingSamples)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	epochs, err := getEnvIntOrDefault("EPOCHS", k.Int("epochs"), DefaultEpochs)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	accuracyThreshold, err := getEnvIntOrDefault("ACCURACY_THRESHOLD", k.Int("accuracy_threshold"), DefaultAccuracyThreshold)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	fetchLimit, err := getEnvIntOrDefault("SAMPLE_FETCH_LIMIT", k.Int("sample_fetch_limit"), DefaultSampleFetchLimit)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	ingestRate, err := getEnvIntOrDefault("INGEST_RATE_PER_MINUTE", k.Int("ingest_rate_per_minute"), DefaultIngestRatePerMinute)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	learningRate, err := getEnvFloatOrDefault("LEARNING_RATE", k.Float64("learning_rate"), DefaultLearningRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	retrainInterval, err := getEnvDurationOrDefault("RETRAIN_INTERVAL", k.Duration("retrain_interval"), DefaultRetrainInterval)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"RANKTUNE_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:           getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		MinTrainingSamples:  minSamples,
		LearningRate:        learningRate,
		Epochs:              epochs,
		AccuracyThreshold:   accuracyThreshold,
		SampleFetchLimit:    fetchLimit,
		RetrainInterval:     retrainInterval,
		IngestRatePerMinute: ingestRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// Validate checks that all required configuration values are present and
// within sane bounds. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.MinTrainingSamples < 1 {
		errs = append(errs, ErrInvalidMinSamples)
	}
	if c.LearningRate <= 0 {
		errs = append(errs, ErrInvalidLearningRate)
	}
	if c.Epochs < 1 {
		errs = append(errs, ErrInvalidEpochs)
	}
	if c.SampleFetchLimit < 1 {
		errs = append(errs, ErrInvalidSampleFetchLimit)
	}
	if c.RetrainInterval <= 0 {
		errs = append(errs, ErrInvalidRetrainInterval)
	}

	return errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns an error if the environment
// variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or
// default. Returns an error if any environment variable is set but cannot be
// parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set,
// otherwise the koanf value, or default. Returns an error if the environment
// variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if
// set, otherwise the koanf value, or default. Returns an error if the
// environment variable is set but cannot be parsed as a duration.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}
