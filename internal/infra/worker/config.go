package worker

import (
	"fmt"
	"log/slog"
	"time"

	"catchup-feed/internal/pkg/config"
)

// WorkerConfig holds the Orchestrator's configuration: the cadence of each
// pipeline stage, the per-stage wall-clock budget, and the operational
// knobs shared by every stage.
//
// All fields have defaults and validation rules so the worker can operate
// safely even with invalid or missing configuration (fail-open strategy:
// a bad value falls back to its default with a warning, never a crash).
type WorkerConfig struct {
	// Timezone is the IANA timezone name used by the stage scheduler.
	// Default: "UTC"
	Timezone string

	// IngestEvery is the cadence of the two Ingest Workers. Default: 30m.
	IngestEvery time.Duration

	// HydrateEvery is the Hydrator's cadence; it trails ingest so fresh
	// queue entries are picked up on the following rotation. Default: 30m.
	HydrateEvery time.Duration

	// DigestEvery is the Digester's cadence. Default: 5m.
	DigestEvery time.Duration

	// ProvenanceEvery is the Provenance Hunter's cadence. Default: 10m.
	ProvenanceEvery time.Duration

	// PublishEvery is the Publisher's cadence. Default: 60m.
	PublishEvery time.Duration

	// StageTimeout (T_STAGE) bounds one stage invocation. Default: 4m.
	StageTimeout time.Duration

	// CancelGrace (T_CANCEL) is how long a cancelled stage gets to return
	// before the Orchestrator logs and moves on. Default: 5s.
	CancelGrace time.Duration

	// HeartbeatEvery is the interval between heartbeat log lines while a
	// stage runs, so the host orchestrator never deems the process idle.
	// Must stay at or below one second. Default: 1s.
	HeartbeatEvery time.Duration

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535. Default: 9091.
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with the pipeline's default cadences.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		Timezone:        "UTC",
		IngestEvery:     30 * time.Minute,
		HydrateEvery:    30 * time.Minute,
		DigestEvery:     5 * time.Minute,
		ProvenanceEvery: 10 * time.Minute,
		PublishEvery:    60 * time.Minute,
		StageTimeout:    4 * time.Minute,
		CancelGrace:     5 * time.Second,
		HeartbeatEvery:  time.Second,
		HealthPort:      9091,
	}
}

// Validate checks the configuration using the reusable validators from
// internal/pkg/config, aggregating every failure into one error.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	cadences := map[string]time.Duration{
		"ingest":     c.IngestEvery,
		"hydrate":    c.HydrateEvery,
		"digest":     c.DigestEvery,
		"provenance": c.ProvenanceEvery,
		"publish":    c.PublishEvery,
	}
	for name, d := range cadences {
		if err := config.ValidateDuration(d, time.Minute, 24*time.Hour); err != nil {
			errs = append(errs, fmt.Errorf("%s cadence: %w", name, err))
		}
	}
	if err := config.ValidateDuration(c.StageTimeout, 10*time.Second, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("stage timeout: %w", err))
	}
	if err := config.ValidateDuration(c.CancelGrace, time.Second, time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("cancel grace: %w", err))
	}
	if err := config.ValidateDuration(c.HeartbeatEvery, 100*time.Millisecond, time.Second); err != nil {
		errs = append(errs, fmt.Errorf("heartbeat interval: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the Orchestrator's configuration from environment
// variables with validation and automatic fallback to defaults on failure
// (fail-open: never returns an error, always a usable config).
//
// Environment variables:
//   - WORKER_TIMEZONE: IANA timezone name (default "UTC")
//   - INGEST_EVERY, HYDRATE_EVERY, DIGEST_EVERY, PROVENANCE_EVERY,
//     PUBLISH_EVERY: duration strings for stage cadences
//   - T_STAGE: per-stage wall-clock budget (default "4m")
//   - T_CANCEL: cancellation grace (default "5s")
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	applyFallback := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	applyFallback("timezone", result)

	cadences := []struct {
		envKey string
		field  string
		dest   *time.Duration
	}{
		{"INGEST_EVERY", "ingest_every", &cfg.IngestEvery},
		{"HYDRATE_EVERY", "hydrate_every", &cfg.HydrateEvery},
		{"DIGEST_EVERY", "digest_every", &cfg.DigestEvery},
		{"PROVENANCE_EVERY", "provenance_every", &cfg.ProvenanceEvery},
		{"PUBLISH_EVERY", "publish_every", &cfg.PublishEvery},
	}
	for _, c := range cadences {
		result = config.LoadEnvDuration(c.envKey, *c.dest, func(d time.Duration) error {
			return config.ValidateDuration(d, time.Minute, 24*time.Hour)
		})
		*c.dest = result.Value.(time.Duration)
		applyFallback(c.field, result)
	}

	result = config.LoadEnvDuration("T_STAGE", cfg.StageTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 10*time.Second, time.Hour)
	})
	cfg.StageTimeout = result.Value.(time.Duration)
	applyFallback("stage_timeout", result)

	result = config.LoadEnvDuration("T_CANCEL", cfg.CancelGrace, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, time.Minute)
	})
	cfg.CancelGrace = result.Value.(time.Duration)
	applyFallback("cancel_grace", result)

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	applyFallback("health_port", result)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
