package worker

import (
	"time"

	"catchup-feed/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the Orchestrator. It embeds
// the standard ConfigMetrics for configuration monitoring and adds per-stage
// execution metrics.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total
//   - worker_config_fallbacks_total
//   - worker_config_fallback_active
//
// Stage metrics (label "stage" is one of ingest, hydrate, digest,
// provenance, publish):
//   - worker_stage_runs_total{stage,status}
//   - worker_stage_duration_seconds{stage}
//   - worker_stage_items_processed_total{stage}
//   - worker_stage_last_success_timestamp{stage}
type WorkerMetrics struct {
	*config.ConfigMetrics

	// StageRunsTotal counts stage invocations by status (success, failure,
	// timeout, skipped_overlap).
	StageRunsTotal *prometheus.CounterVec

	// StageDurationSeconds measures each stage invocation's duration.
	StageDurationSeconds *prometheus.HistogramVec

	// StageItemsProcessedTotal counts the primary unit of work each stage
	// reported (articles ingested, articles digested, facts checked, ...).
	StageItemsProcessedTotal *prometheus.CounterVec

	// StageLastSuccessTimestamp records when each stage last succeeded, the
	// signal alerting uses to spot a silently stuck stage.
	StageLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates a WorkerMetrics instance with all metrics
// initialized and registered on the default registry.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),
		StageRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_stage_runs_total",
			Help: "Total pipeline stage invocations by stage and status",
		}, []string{"stage", "status"}),
		StageDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_stage_duration_seconds",
			Help:    "Pipeline stage invocation duration in seconds",
			Buckets: []float64{1, 5, 30, 60, 120, 240, 600},
		}, []string{"stage"}),
		StageItemsProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_stage_items_processed_total",
			Help: "Total items processed per stage",
		}, []string{"stage"}),
		StageLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_stage_last_success_timestamp",
			Help: "Unix timestamp of each stage's last successful run",
		}, []string{"stage"}),
	}
}

// MustRegister is a no-op kept for the expected initialization pattern;
// every metric here is auto-registered via promauto at construction.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordStageRun records one stage invocation's outcome.
func (m *WorkerMetrics) RecordStageRun(stage, status string) {
	m.StageRunsTotal.WithLabelValues(stage, status).Inc()
}

// RecordStageDuration records one stage invocation's duration.
func (m *WorkerMetrics) RecordStageDuration(stage string, d time.Duration) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStageItems adds the number of items one stage invocation processed.
func (m *WorkerMetrics) RecordStageItems(stage string, count int) {
	if count > 0 {
		m.StageItemsProcessedTotal.WithLabelValues(stage).Add(float64(count))
	}
}

// RecordStageSuccess stamps the stage's last-success gauge with now.
func (m *WorkerMetrics) RecordStageSuccess(stage string) {
	m.StageLastSuccessTimestamp.WithLabelValues(stage).SetToCurrentTime()
}
