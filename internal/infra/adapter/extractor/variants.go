package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"
)

const variantPrompt = `Rewrite the search query below as up to %d alternative phrasings that keep its meaning. Respond with a JSON object of the exact shape {"variants": [string]} and nothing else.

Query:
%s`

// QueryExpander produces keyword variants of a retrieval query using the
// same Extractor-style LLM, sharing the extractor's circuit-breaker and
// retry presets so a struggling API degrades both uses together.
type QueryExpander struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewQueryExpander creates a Claude-backed variant generator.
func NewQueryExpander(apiKey string) *QueryExpander {
	return &QueryExpander{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         LoadClaudeConfig(),
	}
}

// ExpandQuery returns up to n alternative phrasings. A malformed model
// response is a contract violation and yields an empty, error-free list;
// the Retrieval Engine then matches on the original query alone.
func (q *QueryExpander) ExpandQuery(ctx context.Context, query string, n int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, q.config.Timeout)
	defer cancel()

	var raw string
	retryErr := retry.WithBackoff(ctx, q.retryConfig, func() error {
		cbResult, err := q.circuitBreaker.Execute(func() (any, error) {
			return q.doExpand(ctx, query, n)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return fmt.Errorf("query expander unavailable: circuit breaker open")
			}
			return err
		}
		raw = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("query expansion failed after retries: %w", retryErr)
	}

	return parseVariants(raw, n), nil
}

func (q *QueryExpander) doExpand(ctx context.Context, query string, n int) (string, error) {
	start := time.Now()
	message, err := q.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(q.config.Model),
		MaxTokens: int64(q.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(variantPrompt, n, query))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	slog.DebugContext(ctx, "query expansion completed",
		slog.Duration("duration", time.Since(start)))
	return textBlock.Text, nil
}

func parseVariants(raw string, n int) []string {
	var resp struct {
		Variants []string `json:"variants"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		slog.Warn("query expander: contract violation, response was not valid JSON",
			slog.String("error", err.Error()))
		return nil
	}

	out := make([]string, 0, n)
	for _, v := range resp.Variants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}
