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

func testAlert() Alert {
	return Alert{
		Stage:      "digest",
		Message:    "claude extract failed after retries: context deadline exceeded",
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestDiscordNotifier(serverURL string) *DiscordNotifier {
	return NewDiscordNotifier(DiscordConfig{
		Enabled:    true,
		WebhookURL: serverURL,
		Timeout:    2 * time.Second,
	})
}

func TestDiscordNotify_Success(t *testing.T) {
	var captured DiscordWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestDiscordNotifier(server.URL)
	err := n.Notify(context.Background(), testAlert())

	require.NoError(t, err)
	require.Len(t, captured.Embeds, 1)
	embed := captured.Embeds[0]
	assert.Equal(t, "Pipeline stage failed: digest", embed.Title)
	assert.Contains(t, embed.Description, "claude extract failed")
	assert.Equal(t, discordRedColor, embed.Color)
	assert.Equal(t, "catchup-feed worker", embed.Footer.Text)
	assert.Equal(t, "2024-05-01T12:00:00Z", embed.Timestamp)
}

func TestDiscordNotify_ClientErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "Invalid Webhook Token", "code": 50027}`))
	}))
	defer server.Close()

	n := newTestDiscordNotifier(server.URL)
	err := n.Notify(context.Background(), testAlert())

	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx responses must not be retried")

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusBadRequest, clientErr.StatusCode)
}

func TestDiscordNotify_TruncatesOversizedMessage(t *testing.T) {
	var captured DiscordWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	alert := testAlert()
	alert.Message = strings.Repeat("x", maxDescriptionLength+500)

	n := newTestDiscordNotifier(server.URL)
	require.NoError(t, n.Notify(context.Background(), alert))

	require.Len(t, captured.Embeds, 1)
	assert.LessOrEqual(t, len(captured.Embeds[0].Description), maxDescriptionLength)
	assert.True(t, strings.HasSuffix(captured.Embeds[0].Description, truncationSuffix))
}

func TestDiscordNotify_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n := newTestDiscordNotifier(server.URL)
	err := n.Notify(ctx, testAlert())

	require.Error(t, err)
}

func TestExtractRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		want   time.Duration
	}{
		{"from json body", `{"message": "rate limited", "retry_after": 2.5}`, "", 2500 * time.Millisecond},
		{"from header", `{}`, "7", 7 * time.Second},
		{"default fallback", `{}`, "", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			got := extractRetryAfter(resp, []byte(tt.body))
			assert.Equal(t, tt.want, got)
		})
	}
}
