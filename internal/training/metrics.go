package training

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricTrainingRunsTotal     = "training_runs_total"
	MetricTrainingRunDuration   = "training_run_duration_seconds"
	MetricTrainingLastAccuracy  = "training_last_accuracy_percent"
	MetricTrainingLastLoss      = "training_last_loss"
	MetricTrainingLastEpochsRun = "training_last_epochs_run"
	MetricTrainingSamplesUsed   = "training_last_samples_used"
)

// Metrics contains Prometheus metrics for training runs.
// All operations are thread-safe.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastAccuracy    prometheus.Gauge
	lastLoss        prometheus.Gauge
	lastEpochsRun   prometheus.Gauge
	lastSamplesUsed prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTrainingRunsTotal,
				Help: "Total number of auto-train attempts by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricTrainingRunDuration,
			Help:    "Histogram of training run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}),
		lastAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrainingLastAccuracy,
			Help: "Accuracy percentage after the most recent completed training run",
		}),
		lastLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrainingLastLoss,
			Help: "Rank correlation loss after the most recent completed training run",
		}),
		lastEpochsRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrainingLastEpochsRun,
			Help: "Number of epochs executed by the most recent completed training run",
		}),
		lastSamplesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrainingSamplesUsed,
			Help: "Number of samples consumed by the most recent completed training run",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.lastAccuracy,
		m.lastLoss,
		m.lastEpochsRun,
		m.lastSamplesUsed,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRuns increments the run counter for the given outcome label.
func (m *Metrics) IncRuns(outcome string) {
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRunDuration records a training run duration sample.
func (m *Metrics) ObserveRunDuration(seconds float64) {
	m.runDuration.Observe(seconds)
}

// RecordSession updates the last-run gauges from a finalized session.
func (m *Metrics) RecordSession(session *TrainingSession) {
	m.lastAccuracy.Set(session.AccuracyAfter)
	if n := len(session.EpochHistory); n > 0 {
		m.lastLoss.Set(session.EpochHistory[n-1].Loss)
	}
	m.lastEpochsRun.Set(float64(session.EpochsRun))
	m.lastSamplesUsed.Set(float64(session.SamplesUsed))
}
