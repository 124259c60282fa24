// Package worker hosts the Orchestrator: the in-process scheduler that
// drives every pipeline stage at its configured cadence under a per-stage
// wall-clock budget. Stages run as plain function calls inside this
// process — never as child processes — so the host orchestrator always sees
// a live parent and no pipe buffer can deadlock a silent child.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	"catchup-feed/internal/observability/tracing"
)

// StageFunc is one pipeline stage invocation. It returns the number of
// items it processed and a human-readable summary; it must absorb per-item
// failures and only return an error for a whole-stage failure.
type StageFunc func(ctx context.Context) (items int, summary string, err error)

type stage struct {
	name    string
	every   time.Duration
	run     StageFunc
	running atomic.Bool
}

// Orchestrator schedules the pipeline stages in a fixed rotation.
type Orchestrator struct {
	cfg     *WorkerConfig
	metrics *WorkerMetrics
	logger  *slog.Logger
	stages  []*stage
	cron    *cron.Cron
}

// NewOrchestrator builds an Orchestrator. Stages are added with AddStage
// and begin running on Start.
func NewOrchestrator(cfg *WorkerConfig, metrics *WorkerMetrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// AddStage registers a stage under the given name at the given cadence.
// Registration order is the rotation order used for the initial kick-off
// run at startup.
func (o *Orchestrator) AddStage(name string, every time.Duration, run StageFunc) {
	o.stages = append(o.stages, &stage{name: name, every: every, run: run})
}

// Start schedules every registered stage, runs one initial rotation so a
// fresh deployment does useful work immediately, then blocks until ctx is
// cancelled. On cancellation it stops the scheduler and waits up to
// CancelGrace for in-flight stages to return.
func (o *Orchestrator) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(o.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("orchestrator: load timezone: %w", err)
	}

	o.cron = cron.New(cron.WithLocation(loc))
	for _, st := range o.stages {
		st := st
		spec := fmt.Sprintf("@every %s", st.every)
		if _, err := o.cron.AddFunc(spec, func() { o.runStage(ctx, st) }); err != nil {
			return fmt.Errorf("orchestrator: schedule stage %s: %w", st.name, err)
		}
		o.logger.Info("stage scheduled",
			slog.String("stage", st.name),
			slog.Duration("every", st.every))
	}

	o.cron.Start()

	// Initial rotation, in registration order.
	go func() {
		for _, st := range o.stages {
			if ctx.Err() != nil {
				return
			}
			o.runStage(ctx, st)
		}
	}()

	<-ctx.Done()

	stopCtx := o.cron.Stop()
	select {
	case <-stopCtx.Done():
		o.logger.Info("orchestrator stopped cleanly")
	case <-time.After(o.cfg.CancelGrace):
		o.logger.Warn("orchestrator stop grace expired, exiting with stages in flight")
	}
	return nil
}

// runStage executes one stage invocation under the T_STAGE budget with a
// heartbeat so the host orchestrator sees activity at least every second.
// Overlapping invocations of the same stage are skipped, not queued.
func (o *Orchestrator) runStage(ctx context.Context, st *stage) {
	if !st.running.CompareAndSwap(false, true) {
		o.logger.Warn("stage still running, skipping this tick", slog.String("stage", st.name))
		o.metrics.RecordStageRun(st.name, "skipped_overlap")
		return
	}
	defer st.running.Store(false)

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	stageCtx, span := tracing.GetTracer().Start(stageCtx, "stage."+st.name)
	defer span.End()

	stopHeartbeat := o.startHeartbeat(stageCtx, st.name)
	defer stopHeartbeat()

	start := time.Now()
	items, summary, err := o.invoke(stageCtx, st)
	duration := time.Since(start)

	o.metrics.RecordStageDuration(st.name, duration)
	span.SetAttributes(attribute.Int("stage.items", items))
	switch {
	case err != nil && stageCtx.Err() != nil:
		o.metrics.RecordStageRun(st.name, "timeout")
		o.logger.Warn("stage hit its budget, work abandoned until next tick",
			slog.String("stage", st.name),
			slog.Duration("duration", duration),
			slog.Any("error", err))
	case err != nil:
		o.metrics.RecordStageRun(st.name, "failure")
		o.logger.Error("stage failed",
			slog.String("stage", st.name),
			slog.Duration("duration", duration),
			slog.Any("error", err))
	default:
		o.metrics.RecordStageRun(st.name, "success")
		o.metrics.RecordStageItems(st.name, items)
		o.metrics.RecordStageSuccess(st.name)
		o.logger.Info("stage completed",
			slog.String("stage", st.name),
			slog.Duration("duration", duration),
			slog.Int("items", items),
			slog.String("summary", summary))
	}
}

// invoke calls the stage function, converting a panic into a stage failure
// so one bad stage cannot take the whole rotation down.
func (o *Orchestrator) invoke(ctx context.Context, st *stage) (items int, summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
			o.logger.Error("stage panic recovered",
				slog.String("stage", st.name),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	return st.run(ctx)
}

// startHeartbeat logs a heartbeat line at HeartbeatEvery until the returned
// stop function is called or the stage context ends.
func (o *Orchestrator) startHeartbeat(ctx context.Context, stageName string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(o.cfg.HeartbeatEvery)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-ticker.C:
				o.logger.Info("stage heartbeat",
					slog.String("stage", stageName),
					slog.Duration("elapsed", time.Since(start)))
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
