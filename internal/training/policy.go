package training

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/serplab/ranktune/internal/scoring"
)

// WeightStore persists the single authoritative weight vector.
// Implementations must provide atomic full-vector read/replace semantics.
type WeightStore interface {
	// Current returns the active weight vector.
	Current(ctx context.Context) (scoring.FeatureWeights, error)
	// Save atomically replaces the active weight vector.
	Save(ctx context.Context, weights scoring.FeatureWeights) error
}

// SessionLedger stores the append-only training audit trail.
// Records are never updated or deleted by this package.
type SessionLedger interface {
	SaveSession(ctx context.Context, session *TrainingSession) error
	SaveSnapshot(ctx context.Context, snapshot WeightSnapshot) error
}

// Outcome tags the result of one auto-train attempt. The policy never
// signals failure through panics or swallowed exceptions; callers branch on
// the tag.
type Outcome int

const (
	// OutcomeSkipped means the sample count was below the minimum; the
	// weight vector is untouched. Repeating the call with the same samples
	// yields the same result.
	OutcomeSkipped Outcome = iota
	// OutcomeTrained means a run completed and the new vector was persisted.
	OutcomeTrained
	// OutcomeFailed means the run errored or panicked; partial results were
	// discarded and the previous vector remains authoritative.
	OutcomeFailed
)

// String returns the outcome tag as a metric/log label.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTrained:
		return "trained"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports what one auto-train attempt did. Weights always holds a
// usable vector: the freshly trained one on OutcomeTrained, the previous
// one otherwise.
type Result struct {
	Outcome Outcome
	Weights scoring.FeatureWeights
	Session *TrainingSession
	Reason  string
}

// PolicyConfig configures the auto-train policy.
type PolicyConfig struct {
	Trainer TrainerConfig
	Logger  *slog.Logger
	Metrics *Metrics
}

// Policy decides whether enough observations have accumulated to retrain,
// runs the trainer, and persists the result. It exists so the scoring path
// can never be broken by a bad training run.
//
// The current weight vector is a shared mutable resource with no merge
// semantics, so the whole load -> train -> persist span is serialized by a
// mutex; concurrent invocations queue rather than racing on updates.
// Scoring reads are not routed through the policy and stay lock-free.
type Policy struct {
	cfg     PolicyConfig
	weights WeightStore
	ledger  SessionLedger

	mu sync.Mutex
}

// NewPolicy creates an auto-train policy over the given stores.
func NewPolicy(cfg PolicyConfig, weights WeightStore, ledger SessionLedger) *Policy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Trainer = cfg.Trainer.withDefaults()
	return &Policy{cfg: cfg, weights: weights, ledger: ledger}
}

// AutoTrainIfNeeded retrains when the batch reaches the configured minimum.
//
// Below the minimum it returns OutcomeSkipped with the current vector
// untouched. Any error or panic inside the run is absorbed: it is logged,
// partial results are discarded, and the previous vector is returned under
// OutcomeFailed, guaranteeing the caller always receives usable weights.
func (p *Policy) AutoTrainIfNeeded(ctx context.Context, samples []scoring.Sample) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.weights.Current(ctx)
	if err != nil {
		p.cfg.Logger.Error("auto-train: failed to load current weights", "error", err)
		p.observe(OutcomeFailed, 0)
		return Result{Outcome: OutcomeFailed, Weights: scoring.DefaultWeights(), Reason: err.Error()}
	}

	if len(samples) < p.cfg.Trainer.MinSamples {
		return Result{Outcome: OutcomeSkipped, Weights: current}
	}

	started := time.Now()
	res := p.runLocked(ctx, samples, current)
	p.observe(res.Outcome, time.Since(started).Seconds())

	switch res.Outcome {
	case OutcomeTrained:
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordSession(res.Session)
		}
		p.cfg.Logger.Info("auto-train completed",
			"session_id", res.Session.SessionID,
			"samples", res.Session.SamplesUsed,
			"epochs_run", res.Session.EpochsRun,
			"accuracy_before", res.Session.AccuracyBefore,
			"accuracy_after", res.Session.AccuracyAfter,
			"improvement", res.Session.Improvement,
			"duration_ms", res.Session.Duration.Milliseconds())
	case OutcomeFailed:
		p.cfg.Logger.Error("auto-train failed, previous weights remain authoritative",
			"reason", res.Reason,
			"samples", len(samples))
	}
	return res
}

// ForceTrain runs one training pass unconditionally, for the manual retrain
// entry point. Unlike AutoTrainIfNeeded it absorbs nothing: the trainer's
// precondition error (ErrInsufficientSamples), load failures, and persist
// failures are all returned to the caller so the requester sees what went
// wrong synchronously. The run is serialized against automatic retraining by
// the same mutex.
func (p *Policy) ForceTrain(ctx context.Context, samples []scoring.Sample) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.weights.Current(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Weights: scoring.DefaultWeights(), Reason: err.Error()}, err
	}

	started := time.Now()
	updated, session, err := Train(samples, current, p.cfg.Trainer)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Weights: current, Reason: err.Error()}, err
	}

	res, err := p.persistLocked(ctx, updated, session, current, len(samples))
	p.observe(res.Outcome, time.Since(started).Seconds())
	if err != nil {
		return res, err
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordSession(res.Session)
	}
	return res, nil
}

// runLocked executes one training run with the policy mutex held. A panic
// anywhere inside training or persistence is converted into OutcomeFailed
// with the previous vector.
func (p *Policy) runLocked(ctx context.Context, samples []scoring.Sample, current scoring.FeatureWeights) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Outcome: OutcomeFailed,
				Weights: current,
				Reason:  fmt.Sprintf("panic during training: %v", r),
			}
		}
	}()

	updated, session, err := Train(samples, current, p.cfg.Trainer)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Weights: current, Reason: err.Error()}
	}

	// Auto-train absorbs persist failures; Result.Reason carries the cause.
	res, _ = p.persistLocked(ctx, updated, session, current, len(samples))
	return res
}

// persistLocked saves the trained vector and appends the audit records.
// Must be called with the policy mutex held. The returned error reports a
// weight-store failure; callers that surface errors synchronously pass it on.
func (p *Policy) persistLocked(ctx context.Context, updated scoring.FeatureWeights, session *TrainingSession, current scoring.FeatureWeights, sampleCount int) (Result, error) {
	if err := p.weights.Save(ctx, updated); err != nil {
		return Result{Outcome: OutcomeFailed, Weights: current, Reason: fmt.Sprintf("persist weights: %v", err)},
			fmt.Errorf("persist trained weights: %w", err)
	}

	// The audit trail is best-effort: the new vector is already live, so a
	// ledger error is logged rather than failing the run.
	if err := p.ledger.SaveSession(ctx, session); err != nil {
		p.cfg.Logger.Warn("failed to save training session", "session_id", session.SessionID, "error", err)
	}
	snapshot := WeightSnapshot{
		SessionID:    session.SessionID,
		Weights:      updated,
		Accuracy:     session.AccuracyAfter,
		TotalSamples: sampleCount,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.ledger.SaveSnapshot(ctx, snapshot); err != nil {
		p.cfg.Logger.Warn("failed to save weight snapshot", "session_id", session.SessionID, "error", err)
	}

	return Result{Outcome: OutcomeTrained, Weights: updated, Session: session}, nil
}

// observe records policy metrics when a collector is configured.
func (p *Policy) observe(outcome Outcome, seconds float64) {
	if p.cfg.Metrics == nil {
		return
	}
	p.cfg.Metrics.IncRuns(outcome.String())
	if outcome != OutcomeSkipped {
		p.cfg.Metrics.ObserveRunDuration(seconds)
	}
}
