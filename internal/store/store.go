// Package store provides persistence for weight vectors, observed samples,
// and the append-only training audit trail. The training package defines the
// interfaces it consumes; this package supplies in-memory, PostgreSQL, and
// Redis implementations.
package store

import (
	"context"
	"errors"

	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/training"
)

// Common store errors.
var (
	// ErrNoWeights is returned when no weight vector has been saved yet.
	// Callers typically fall back to scoring.DefaultWeights.
	ErrNoWeights = errors.New("no weight vector stored")
)

// SampleStore persists observed samples. Samples are immutable once added.
type SampleStore interface {
	// Add appends a new sample.
	Add(ctx context.Context, sample scoring.Sample) error
	// Recent returns up to limit samples, most-recent-first.
	Recent(ctx context.Context, limit int) ([]scoring.Sample, error)
	// Count returns the total number of stored samples.
	Count(ctx context.Context) (int, error)
}

// SessionLedger extends the trainer's append-only ledger with the read side
// used by the sessions API.
type SessionLedger interface {
	training.SessionLedger

	// RecentSessions returns up to limit sessions, most-recent-first.
	RecentSessions(ctx context.Context, limit int) ([]*training.TrainingSession, error)
}

// Interface conformance checks.
var (
	_ training.WeightStore  = (*MemoryWeightStore)(nil)
	_ SampleStore           = (*MemorySampleStore)(nil)
	_ training.SampleSource = (*MemorySampleStore)(nil)
	_ SessionLedger         = (*MemorySessionLedger)(nil)

	_ training.WeightStore  = (*PostgresWeightStore)(nil)
	_ SampleStore           = (*PostgresSampleStore)(nil)
	_ training.SampleSource = (*PostgresSampleStore)(nil)
	_ SessionLedger         = (*PostgresSessionLedger)(nil)

	_ training.WeightStore = (*RedisWeightStore)(nil)
)
