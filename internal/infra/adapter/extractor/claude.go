// Package extractor adapts the Digester's Extractor dependency onto the
// teacher's dual-provider AI client shape (internal/infra/summarizer):
// Claude primary, OpenAI fallback, same circuit-breaker+retry+metrics
// scaffolding, but prompted for structured fact triples instead of a
// Japanese free-text summary.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"
)

// Extractor is the contract internal/usecase/digest depends on.
type Extractor interface {
	ExtractFacts(ctx context.Context, text string) ([]entity.Candidate, error)
}

// Claude implements Extractor using Anthropic's API.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewClaude creates a Claude-backed Extractor.
func NewClaude(apiKey string) *Claude {
	cfg := LoadClaudeConfig()
	slog.Info("initialized claude extractor",
		slog.String("model", cfg.Model), slog.Int("max_tokens", cfg.MaxTokens))

	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         cfg,
	}
}

// ExtractFacts calls Claude with the fact-extraction prompt and parses its
// JSON response. A circuit-breaker-open state or exhausted retries are
// returned as errors (the Digester retries the extraction step once before
// stamping the article with zero facts, per its failure semantics); a
// malformed model response is a contract violation and comes back as an
// empty, error-free list.
func (c *Claude) ExtractFacts(ctx context.Context, text string) ([]entity.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var raw string
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (any, error) {
			return c.doExtract(ctx, text)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude extractor circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude extractor unavailable: circuit breaker open")
			}
			return err
		}
		raw = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("claude extract failed after retries: %w", retryErr)
	}

	candidates := parseFacts(raw)
	candidatesPerCall.Observe(float64(len(candidates)))
	return candidates, nil
}

func (c *Claude) doExtract(ctx context.Context, inputText string) (string, error) {
	requestID := uuid.New().String()
	truncated := truncateToBytes(inputText, MaxInputBytes)
	if len(truncated) != len(inputText) {
		slog.Warn("extractor: input truncated to contract limit",
			slog.String("request_id", requestID),
			slog.Int("original_bytes", len(inputText)),
			slog.Int("truncated_bytes", len(truncated)))
	}

	prompt := buildExtractionPrompt(truncated)

	slog.InfoContext(ctx, "starting fact extraction",
		slog.String("request_id", requestID), slog.Int("input_bytes", len(truncated)))

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	duration := time.Since(start)
	extractionDuration.WithLabelValues("claude").Observe(duration.Seconds())

	if err != nil {
		slog.ErrorContext(ctx, "fact extraction failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		slog.ErrorContext(ctx, "claude returned empty response",
			slog.String("request_id", requestID), slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		slog.ErrorContext(ctx, "claude returned unexpected content type",
			slog.String("request_id", requestID), slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	slog.InfoContext(ctx, "fact extraction completed",
		slog.String("request_id", requestID), slog.Duration("duration", duration))

	return textBlock.Text, nil
}
