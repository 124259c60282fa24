package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"catchup-feed/internal/infra/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier captures the alert handed to the infra layer.
type recordingNotifier struct {
	alert *notifier.Alert
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, alert notifier.Alert) error {
	if r.err != nil {
		return r.err
	}
	r.alert = &alert
	return nil
}

func sampleAlert() notifier.Alert {
	return notifier.Alert{
		Stage:      "provenance",
		Message:    "search endpoint down",
		OccurredAt: time.Now(),
	}
}

func TestDiscordChannel_SendDelegatesToNotifier(t *testing.T) {
	rec := &recordingNotifier{}
	ch := &DiscordChannel{notifier: rec, enabled: true}

	err := ch.Send(context.Background(), sampleAlert())

	require.NoError(t, err)
	require.NotNil(t, rec.alert)
	assert.Equal(t, "provenance", rec.alert.Stage)
}

func TestDiscordChannel_DisabledRejectsSend(t *testing.T) {
	ch := NewDiscordChannel(notifier.DiscordConfig{Enabled: false})

	assert.False(t, ch.IsEnabled())
	assert.ErrorIs(t, ch.Send(context.Background(), sampleAlert()), ErrChannelDisabled)
}

func TestDiscordChannel_RejectsAlertWithoutStage(t *testing.T) {
	ch := &DiscordChannel{notifier: &recordingNotifier{}, enabled: true}

	err := ch.Send(context.Background(), notifier.Alert{Message: "no stage"})

	assert.ErrorIs(t, err, ErrInvalidAlert)
}

func TestDiscordChannel_Name(t *testing.T) {
	assert.Equal(t, "discord", NewDiscordChannel(notifier.DiscordConfig{}).Name())
}

func TestSlackChannel_SendDelegatesToNotifier(t *testing.T) {
	rec := &recordingNotifier{}
	ch := &SlackChannel{notifier: rec, enabled: true}

	err := ch.Send(context.Background(), sampleAlert())

	require.NoError(t, err)
	require.NotNil(t, rec.alert)
	assert.Equal(t, "search endpoint down", rec.alert.Message)
}

func TestSlackChannel_DisabledRejectsSend(t *testing.T) {
	ch := NewSlackChannel(notifier.SlackConfig{Enabled: false})

	assert.False(t, ch.IsEnabled())
	assert.ErrorIs(t, ch.Send(context.Background(), sampleAlert()), ErrChannelDisabled)
}

func TestSlackChannel_PropagatesNotifierError(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("rate limited")}
	ch := &SlackChannel{notifier: rec, enabled: true}

	err := ch.Send(context.Background(), sampleAlert())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSlackChannel_Name(t *testing.T) {
	assert.Equal(t, "slack", NewSlackChannel(notifier.SlackConfig{}).Name())
}
