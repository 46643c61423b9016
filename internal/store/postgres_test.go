//go:build integration

// Integration tests in this file spin up a disposable PostgreSQL container.
// Run with: go test -tags=integration -v ./internal/store/...
//
// Docker must be available on the host.
package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/serplab/ranktune/internal/scoring"
	"github.com/serplab/ranktune/internal/training"
)

// startPostgres launches a throwaway PostgreSQL container and returns an open
// database with the schema applied.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ranktune_test"),
		tcpostgres.WithUsername("ranktune"),
		tcpostgres.WithPassword("ranktune"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
	return db
}

// TestPostgresWeightStore tests the single-row UPSERT weight store.
func TestPostgresWeightStore(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	s := NewPostgresWeightStore(db, nil)

	if _, err := s.Current(ctx); !errors.Is(err, ErrNoWeights) {
		t.Fatalf("expected ErrNoWeights before first save, got %v", err)
	}

	want := scoring.DefaultWeights()
	want.CRank = 0.42
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	got, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want.Tunable(), got.Tunable())
	}
	if got.CRankComponents["context"] != want.CRankComponents["context"] {
		t.Error("component breakdowns must survive the round-trip")
	}

	// The UPSERT keeps exactly one row.
	next := scoring.DefaultWeights()
	next.Dia = 0.8
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	var rows int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feature_weights`).Scan(&rows); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected exactly one weight row, got %d", rows)
	}
}

// TestPostgresSampleStore tests append and most-recent-first reads.
func TestPostgresSampleStore(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	s := NewPostgresSampleStore(db, nil)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		sample, err := scoring.NewSample(map[string]float64{
			scoring.FeatureCRank: float64(i * 10),
		}, i+1, float64(i))
		if err != nil {
			t.Fatalf("building sample %d: %v", i, err)
		}
		// Spread collection times so ordering is unambiguous.
		sample.CollectedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.Add(ctx, sample); err != nil {
			t.Fatalf("unexpected add error: %v", err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	if got[0].ActualRank != 5 {
		t.Errorf("expected newest sample first, got rank %d", got[0].ActualRank)
	}
	if got[0].Features[scoring.FeatureCRank] != 40 {
		t.Errorf("features did not round-trip: %v", got[0].Features)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected count 5, got %d", n)
	}
}

// TestPostgresSessionLedger tests the append-only audit trail round-trip.
func TestPostgresSessionLedger(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	l := NewPostgresSessionLedger(db, nil)

	samples := make([]scoring.Sample, 0, 5)
	for i, c := range []float64{90, 70, 50, 30, 10} {
		sample, err := scoring.NewSample(map[string]float64{scoring.FeatureCRank: c}, i+1, 0)
		if err != nil {
			t.Fatalf("building sample: %v", err)
		}
		samples = append(samples, sample)
	}

	// A real trainer run produces the richest session record to persist.
	weights, session, err := training.Train(samples, scoring.DefaultWeights(), training.TrainerConfig{MinSamples: 1})
	if err != nil {
		t.Fatalf("unexpected training error: %v", err)
	}
	if err := l.SaveSession(ctx, session); err != nil {
		t.Fatalf("unexpected session save error: %v", err)
	}
	if err := l.SaveSnapshot(ctx, training.WeightSnapshot{
		SessionID:    session.SessionID,
		Weights:      weights,
		Accuracy:     session.AccuracyAfter,
		TotalSamples: len(samples),
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("unexpected snapshot save error: %v", err)
	}

	sessions, err := l.RecentSessions(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.SessionID != session.SessionID {
		t.Errorf("expected session %s, got %s", session.SessionID, got.SessionID)
	}
	if got.SamplesUsed != session.SamplesUsed {
		t.Errorf("expected %d samples used, got %d", session.SamplesUsed, got.SamplesUsed)
	}
	if len(got.EpochHistory) != len(session.EpochHistory) {
		t.Errorf("epoch history did not round-trip: %d vs %d",
			len(got.EpochHistory), len(session.EpochHistory))
	}
	if _, ok := got.WeightDeltas["c_rank"]; !ok {
		t.Error("weight deltas did not round-trip")
	}
}
