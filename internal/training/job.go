package training

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serplab/ranktune/internal/scoring"
)

// SampleSource provides the observation batch for a retrain cycle.
type SampleSource interface {
	// Recent returns up to limit samples, most-recent-first.
	Recent(ctx context.Context, limit int) ([]scoring.Sample, error)
}

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// JobTypeRetrain is the job type label used for retrain cycle metrics.
const JobTypeRetrain = "weight_retrain"

// Default cadence for the retrain job.
const (
	DefaultRetrainInterval = 30 * time.Second
	DefaultRetrainTimeout  = 30 * time.Second
	DefaultFetchLimit      = 500
)

// RetrainJobConfig configures the periodic retrain job.
type RetrainJobConfig struct {
	// Interval is the duration between retrain cycles.
	Interval time.Duration
	// Timeout bounds each cycle; training itself has no suspension points,
	// so this is caller-side defense-in-depth around store I/O.
	Timeout time.Duration
	// FetchLimit caps how many recent samples a cycle loads.
	FetchLimit int
	// Logger for job activity.
	Logger *slog.Logger
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// RetrainJob periodically runs the auto-train policy over the most recent
// samples. A full run is CPU-bound and can take non-trivial wall-clock time,
// so request handlers only mark new data dirty; the heavy loop always
// executes on this job's goroutine, isolated from request serving.
type RetrainJob struct {
	config  RetrainJobConfig
	policy  *Policy
	samples SampleSource

	dirty atomic.Bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRetrainJob creates a periodic retrain job over the given policy.
func NewRetrainJob(config RetrainJobConfig, policy *Policy, samples SampleSource) *RetrainJob {
	if config.Interval == 0 {
		config.Interval = DefaultRetrainInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRetrainTimeout
	}
	if config.FetchLimit == 0 {
		config.FetchLimit = DefaultFetchLimit
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RetrainJob{
		config:  config,
		policy:  policy,
		samples: samples,
	}
}

// MarkDirty flags that new observations have arrived since the last cycle.
// Safe to call from any goroutine.
func (j *RetrainJob) MarkDirty() {
	j.dirty.Store(true)
}

// Start begins the periodic retrain job.
// Returns immediately; the job runs in a background goroutine.
func (j *RetrainJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the retrain job to stop and waits for it to finish.
func (j *RetrainJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *RetrainJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the retrain job.
func (j *RetrainJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("retrain job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("retrain job stopping due to stop signal")
			return
		case <-ticker.C:
			j.cycle(ctx)
		}
	}
}

// RetrainNow immediately runs one cycle without waiting for the ticker,
// regardless of the dirty flag. Useful for testing and forced updates.
func (j *RetrainJob) RetrainNow(ctx context.Context) Result {
	j.dirty.Store(true)
	return j.cycle(ctx)
}

// cycle loads recent samples and runs the auto-train policy once.
// Cycles with no new data since the last run are skipped outright.
func (j *RetrainJob) cycle(parentCtx context.Context) Result {
	if !j.dirty.Swap(false) {
		return Result{Outcome: OutcomeSkipped}
	}

	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	started := time.Now()

	batch, err := j.samples.Recent(ctx, j.config.FetchLimit)
	if err != nil {
		// Leave the flag set so the next tick retries.
		j.dirty.Store(true)
		j.config.Logger.Error("retrain cycle failed to load samples", "error", err)
		if j.config.JobMetrics != nil {
			j.config.JobMetrics.IncJobErrors(JobTypeRetrain, "sample_load")
			j.config.JobMetrics.IncJobsTotal(JobTypeRetrain, "failure")
		}
		return Result{Outcome: OutcomeFailed, Reason: err.Error()}
	}

	res := j.policy.AutoTrainIfNeeded(ctx, batch)

	duration := time.Since(started).Seconds()
	status := "success"
	if res.Outcome == OutcomeFailed {
		status = "failure"
	}
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal(JobTypeRetrain, status)
		j.config.JobMetrics.ObserveJobDuration(JobTypeRetrain, duration)
	}

	j.config.Logger.Debug("retrain cycle completed",
		"outcome", res.Outcome.String(),
		"samples", len(batch),
		"duration_seconds", duration)

	return res
}
