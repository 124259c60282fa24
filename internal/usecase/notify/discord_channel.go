package notify

import (
	"context"

	"catchup-feed/internal/infra/notifier"
)

// DiscordChannel implements the Channel interface for Discord alerts.
// It wraps the DiscordNotifier from the infrastructure layer to provide the
// Channel abstraction for the alerting use case.
type DiscordChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewDiscordChannel creates a new Discord channel with the specified
// configuration. If Discord alerts are disabled, a NoOpNotifier is used so
// the Channel contract is always satisfied without nil checks.
func NewDiscordChannel(config notifier.DiscordConfig) *DiscordChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewDiscordNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &DiscordChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "discord".
func (c *DiscordChannel) Name() string {
	return "discord"
}

// IsEnabled returns whether Discord alerts are enabled via configuration.
func (c *DiscordChannel) IsEnabled() bool {
	return c.enabled
}

// Send delivers one stage-failure alert to Discord. The underlying notifier
// handles rate limiting (0.5 req/s with burst of 3), retry with backoff,
// context timeouts, and request-ID logging.
func (c *DiscordChannel) Send(ctx context.Context, alert notifier.Alert) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if alert.Stage == "" {
		return ErrInvalidAlert
	}
	return c.notifier.Notify(ctx, alert)
}
