package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/training"
)

// Schema is the DDL for the ranktune tables. The weight vector lives in a
// single-row table replaced transactionally; samples, sessions, and
// snapshots are append-only.
const Schema = `
CREATE TABLE IF NOT EXISTS feature_weights (
	id         INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	weights    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS samples (
	id              UUID PRIMARY KEY,
	features        JSONB NOT NULL,
	actual_rank     INT NOT NULL CHECK (actual_rank >= 1),
	predicted_score DOUBLE PRECISION NOT NULL,
	collected_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_collected_at ON samples (collected_at DESC);

CREATE TABLE IF NOT EXISTS training_sessions (
	session_id      UUID PRIMARY KEY,
	samples_used    INT NOT NULL,
	accuracy_before DOUBLE PRECISION NOT NULL,
	accuracy_after  DOUBLE PRECISION NOT NULL,
	improvement     DOUBLE PRECISION NOT NULL,
	duration_ms     BIGINT NOT NULL,
	epochs_run      INT NOT NULL,
	learning_rate   DOUBLE PRECISION NOT NULL,
	epoch_history   JSONB NOT NULL,
	weight_deltas   JSONB NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_training_sessions_started_at ON training_sessions (started_at DESC);

CREATE TABLE IF NOT EXISTS weight_snapshots (
	id            BIGSERIAL PRIMARY KEY,
	session_id    UUID NOT NULL,
	weights       JSONB NOT NULL,
	accuracy      DOUBLE PRECISION NOT NULL,
	total_samples INT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the ranktune tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// PostgresWeightStore persists the weight vector as a single JSONB row.
// The full-row UPSERT gives atomic full-vector replace semantics.
type PostgresWeightStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresWeightStore creates a weight store over the given database.
func NewPostgresWeightStore(db *sql.DB, logger *slog.Logger) *PostgresWeightStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresWeightStore{db: db, logger: logger}
}

// Current returns the active weight vector, or ErrNoWeights when no vector
// has been saved yet.
func (s *PostgresWeightStore) Current(ctx context.Context) (scoring.FeatureWeights, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT weights FROM feature_weights WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return scoring.FeatureWeights{}, ErrNoWeights
	}
	if err != nil {
		return scoring.FeatureWeights{}, fmt.Errorf("failed to load weights: %w", err)
	}
	var weights scoring.FeatureWeights
	if err := json.Unmarshal(raw, &weights); err != nil {
		return scoring.FeatureWeights{}, fmt.Errorf("failed to decode weights: %w", err)
	}
	return weights, nil
}

// Save atomically replaces the active weight vector.
func (s *PostgresWeightStore) Save(ctx context.Context, weights scoring.FeatureWeights) error {
	raw, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feature_weights (id, weights, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET weights = EXCLUDED.weights, updated_at = now()
	`, raw)
	if err != nil {
		return fmt.Errorf("failed to save weights: %w", err)
	}
	return nil
}

// PostgresSampleStore persists observed samples append-only.
type PostgresSampleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSampleStore creates a sample store over the given database.
func NewPostgresSampleStore(db *sql.DB, logger *slog.Logger) *PostgresSampleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSampleStore{db: db, logger: logger}
}

// Add appends a new sample.
func (s *PostgresSampleStore) Add(ctx context.Context, sample scoring.Sample) error {
	features, err := json.Marshal(sample.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO samples (id, features, actual_rank, predicted_score, collected_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sample.ID, features, sample.ActualRank, sample.PredictedScore, sample.CollectedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples, most-recent-first.
func (s *PostgresSampleStore) Recent(ctx context.Context, limit int) ([]scoring.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, features, actual_rank, predicted_score, collected_at
		FROM samples
		ORDER BY collected_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close sample rows", "error", err)
		}
	}()

	var out []scoring.Sample
	for rows.Next() {
		var sample scoring.Sample
		var features []byte
		if err := rows.Scan(&sample.ID, &features, &sample.ActualRank, &sample.PredictedScore, &sample.CollectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if err := json.Unmarshal(features, &sample.Features); err != nil {
			return nil, fmt.Errorf("failed to decode features: %w", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}
	return out, nil
}

// Count returns the total number of stored samples.
func (s *PostgresSampleStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}

// PostgresSessionLedger persists the append-only training audit trail.
type PostgresSessionLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSessionLedger creates a session ledger over the given database.
func NewPostgresSessionLedger(db *sql.DB, logger *slog.Logger) *PostgresSessionLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionLedger{db: db, logger: logger}
}

// SaveSession appends a finalized training session.
func (l *PostgresSessionLedger) SaveSession(ctx context.Context, session *training.TrainingSession) error {
	history, err := json.Marshal(session.EpochHistory)
	if err != nil {
		return fmt.Errorf("failed to encode epoch history: %w", err)
	}
	deltas, err := json.Marshal(session.WeightDeltas)
	if err != nil {
		return fmt.Errorf("failed to encode weight deltas: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO training_sessions
			(session_id, samples_used, accuracy_before, accuracy_after, improvement,
			 duration_ms, epochs_run, learning_rate, epoch_history, weight_deltas, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, session.SessionID, session.SamplesUsed, session.AccuracyBefore, session.AccuracyAfter,
		session.Improvement, session.Duration.Milliseconds(), session.EpochsRun,
		session.LearningRate, history, deltas, session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert training session: %w", err)
	}
	return nil
}

// SaveSnapshot appends a weight snapshot.
func (l *PostgresSessionLedger) SaveSnapshot(ctx context.Context, snapshot training.WeightSnapshot) error {
	weights, err := json.Marshal(snapshot.Weights)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot weights: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO weight_snapshots (session_id, weights, accuracy, total_samples, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snapshot.SessionID, weights, snapshot.Accuracy, snapshot.TotalSamples, snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert weight snapshot: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, most-recent-first.
func (l *PostgresSessionLedger) RecentSessions(ctx context.Context, limit int) ([]*training.TrainingSession, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, samples_used, accuracy_before, accuracy_after, improvement,
		       duration_ms, epochs_run, learning_rate, epoch_history, weight_deltas, started_at
		FROM training_sessions
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training sessions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			l.logger.Warn("failed to close session rows", "error", err)
		}
	}()

	var out []*training.TrainingSession
	for rows.Next() {
		var session training.TrainingSession
		var durationMs int64
		var history, deltas []byte
		if err := rows.Scan(&session.SessionID, &session.SamplesUsed, &session.AccuracyBefore,
			&session.AccuracyAfter, &session.Improvement, &durationMs, &session.EpochsRun,
			&session.LearningRate, &history, &deltas, &session.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training session: %w", err)
		}
		session.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal(history, &session.EpochHistory); err != nil {
			return nil, fmt.Errorf("failed to decode epoch history: %w", err)
		}
		if err := json.Unmarshal(deltas, &session.WeightDeltas); err != nil {
			return nil, fmt.Errorf("failed to decode weight deltas: %w", err)
		}
		out = append(out, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training sessions: %w", err)
	}
	return out, nil
}
