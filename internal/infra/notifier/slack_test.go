package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSlackNotifier(serverURL string) *SlackNotifier {
	return NewSlackNotifier(SlackConfig{
		Enabled:    true,
		WebhookURL: serverURL,
		Timeout:    2 * time.Second,
	})
}

func TestSlackNotify_Success(t *testing.T) {
	var captured SlackWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	n := newTestSlackNotifier(server.URL)
	err := n.Notify(context.Background(), testAlert())

	require.NoError(t, err)
	assert.Equal(t, "Pipeline stage failed: digest", captured.Text)
	require.Len(t, captured.Blocks, 2)

	section := captured.Blocks[0]
	assert.Equal(t, "section", section.Type)
	require.NotNil(t, section.Text)
	assert.Contains(t, section.Text.Text, "*Stage `digest` failed*")
	assert.Contains(t, section.Text.Text, "claude extract failed")

	contextBlock := captured.Blocks[1]
	assert.Equal(t, "context", contextBlock.Type)
	require.Len(t, contextBlock.Elements, 1)
	assert.Contains(t, contextBlock.Elements[0].Text, "catchup-feed worker")
	assert.Contains(t, contextBlock.Elements[0].Text, "2024-05-01T12:00:00Z")
}

func TestSlackNotify_ServerErrorRetriesThenFails(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// Cancel the context during the first retry backoff so the test does not
	// sit through the real 5s delay.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	n := newTestSlackNotifier(server.URL)
	err := n.Notify(ctx, testAlert())

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestSlackNotify_ClientErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service"))
	}))
	defer server.Close()

	n := newTestSlackNotifier(server.URL)
	err := n.Notify(context.Background(), testAlert())

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
}

func TestSlackBuildPayload_TruncatesSectionText(t *testing.T) {
	n := newTestSlackNotifier("https://hooks.slack.com/services/T/B/X")

	alert := testAlert()
	alert.Message = strings.Repeat("y", maxSectionTextLength+100)

	payload := n.buildBlockKitPayload(alert)

	require.Len(t, payload.Blocks, 2)
	assert.LessOrEqual(t, len(payload.Blocks[0].Text.Text), maxSectionTextLength)
	assert.True(t, strings.HasSuffix(payload.Blocks[0].Text.Text, slackTruncationSuffix))
}
