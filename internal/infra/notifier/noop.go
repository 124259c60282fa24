package notifier

import (
	"context"
)

// NoOpNotifier is a Notifier implementation that does nothing.
// It is used when alerting is disabled, allowing the application to run
// without a configured webhook while keeping the same code path.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Notify does nothing and returns nil immediately.
// This allows the alerting flow to proceed without any external calls.
func (n *NoOpNotifier) Notify(ctx context.Context, alert Alert) error {
	return nil
}
