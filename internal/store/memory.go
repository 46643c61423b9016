package store

import (
	"context"
	"sync"

	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/training"
)

// MemoryWeightStore is an in-memory WeightStore. Thread-safe via RWMutex;
// the whole vector is replaced under one lock, which satisfies the atomic
// full-vector read/replace contract.
type MemoryWeightStore struct {
	mu      sync.RWMutex
	weights scoring.FeatureWeights
	set     bool
}

// NewMemoryWeightStore creates an empty in-memory weight store.
// Current returns ErrNoWeights until the first Save.
func NewMemoryWeightStore() *MemoryWeightStore {
	return &MemoryWeightStore{}
}

// NewMemoryWeightStoreWith creates an in-memory weight store seeded with the
// given vector.
func NewMemoryWeightStoreWith(weights scoring.FeatureWeights) *MemoryWeightStore {
	return &MemoryWeightStore{weights: weights, set: true}
}

// Current returns the active weight vector.
func (s *MemoryWeightStore) Current(ctx context.Context) (scoring.FeatureWeights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return scoring.FeatureWeights{}, ErrNoWeights
	}
	return s.weights, nil
}

// Save atomically replaces the active weight vector.
func (s *MemoryWeightStore) Save(ctx context.Context, weights scoring.FeatureWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = weights
	s.set = true
	return nil
}

// MemorySampleStore is an in-memory SampleStore. Thread-safe via RWMutex.
type MemorySampleStore struct {
	mu      sync.RWMutex
	samples []scoring.Sample // append order == collection order
}

// NewMemorySampleStore creates an empty in-memory sample store.
func NewMemorySampleStore() *MemorySampleStore {
	return &MemorySampleStore{}
}

// Add appends a new sample.
func (s *MemorySampleStore) Add(ctx context.Context, sample scoring.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

// Recent returns up to limit samples, most-recent-first.
func (s *MemorySampleStore) Recent(ctx context.Context, limit int) ([]scoring.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.samples)
	if limit > n || limit <= 0 {
		limit = n
	}
	out := make([]scoring.Sample, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.samples[i])
	}
	return out, nil
}

// Count returns the total number of stored samples.
func (s *MemorySampleStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples), nil
}

// MemorySessionLedger is an in-memory SessionLedger. Thread-safe via RWMutex;
// records are append-only.
type MemorySessionLedger struct {
	mu        sync.RWMutex
	sessions  []*training.TrainingSession
	snapshots []training.WeightSnapshot
}

// NewMemorySessionLedger creates an empty in-memory session ledger.
func NewMemorySessionLedger() *MemorySessionLedger {
	return &MemorySessionLedger{}
}

// SaveSession appends a finalized training session.
func (l *MemorySessionLedger) SaveSession(ctx context.Context, session *training.TrainingSession) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append(l.sessions, session)
	return nil
}

// SaveSnapshot appends a weight snapshot.
func (l *MemorySessionLedger) SaveSnapshot(ctx context.Context, snapshot training.WeightSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, snapshot)
	return nil
}

// RecentSessions returns up to limit sessions, most-recent-first.
func (l *MemorySessionLedger) RecentSessions(ctx context.Context, limit int) ([]*training.TrainingSession, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.sessions)
	if limit > n || limit <= 0 {
		limit = n
	}
	out := make([]*training.TrainingSession, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.sessions[i])
	}
	return out, nil
}

// Snapshots returns a copy of all stored snapshots (for tests).
func (l *MemorySessionLedger) Snapshots() []training.WeightSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]training.WeightSnapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}
