package notify

import (
	"context"

	"catchup-feed/internal/infra/notifier"
)

// SlackChannel implements the Channel interface for Slack alerts.
// It wraps the SlackNotifier from the infrastructure layer to provide the
// Channel abstraction for the alerting use case.
type SlackChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewSlackChannel creates a new Slack channel with the specified
// configuration. If Slack alerts are disabled, a NoOpNotifier is used so
// the Channel contract is always satisfied without nil checks.
func NewSlackChannel(config notifier.SlackConfig) *SlackChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewSlackNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &SlackChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "slack".
func (c *SlackChannel) Name() string {
	return "slack"
}

// IsEnabled returns whether Slack alerts are enabled via configuration.
func (c *SlackChannel) IsEnabled() bool {
	return c.enabled
}

// Send delivers one stage-failure alert to Slack. The underlying notifier
// handles rate limiting (1 req/s), retry with backoff, context timeouts,
// and request-ID logging.
func (c *SlackChannel) Send(ctx context.Context, alert notifier.Alert) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if alert.Stage == "" {
		return ErrInvalidAlert
	}
	return c.notifier.Notify(ctx, alert)
}
