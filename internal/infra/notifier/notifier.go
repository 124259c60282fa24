// Package notifier provides abstraction for sending pipeline alerts.
// It defines the Notifier interface which allows different delivery
// mechanisms (Discord, Slack, email, etc.) to be used interchangeably
// through dependency injection.
//
// The package includes implementations for Discord and Slack webhooks and a
// no-op notifier for when alerting is disabled.
package notifier

import (
	"context"
	"time"
)

// Alert describes one pipeline stage failure worth telling an operator about.
type Alert struct {
	// Stage is the pipeline stage that failed (ingest, hydrate, digest,
	// provenance, publish).
	Stage string

	// Message is the failure description, already sanitized of credentials.
	Message string

	// OccurredAt is when the failure was observed.
	OccurredAt time.Time
}

// Notifier is an interface for sending stage-failure alerts.
// Implementations should handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// Notify sends one stage-failure alert.
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	Notify(ctx context.Context, alert Alert) error
}
