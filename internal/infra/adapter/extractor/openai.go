package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"
)

// OpenAI implements Extractor as the fallback provider behind Claude.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewOpenAI creates an OpenAI-backed Extractor.
func NewOpenAI(apiKey string) *OpenAI {
	cfg := LoadOpenAIConfig()
	slog.Info("initialized openai extractor", slog.String("model", cfg.Model))

	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         cfg,
	}
}

func (o *OpenAI) ExtractFacts(ctx context.Context, text string) ([]entity.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var raw string
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (any, error) {
			return o.doExtract(ctx, text)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai extractor circuit breaker open, request rejected",
					slog.String("service", "openai-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai extractor unavailable: circuit breaker open")
			}
			return err
		}
		raw = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("openai extract failed after retries: %w", retryErr)
	}

	candidates := parseFacts(raw)
	candidatesPerCall.Observe(float64(len(candidates)))
	return candidates, nil
}

func (o *OpenAI) doExtract(ctx context.Context, inputText string) (string, error) {
	truncated := truncateToBytes(inputText, MaxInputBytes)
	prompt := buildExtractionPrompt(truncated)

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    "user",
			Content: prompt,
		}},
		MaxTokens: o.config.MaxTokens,
	})
	duration := time.Since(start)
	extractionDuration.WithLabelValues("openai").Observe(duration.Seconds())

	if err != nil {
		slog.ErrorContext(ctx, "fact extraction failed",
			slog.Duration("duration", duration), slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.ErrorContext(ctx, "openai returned empty response", slog.Duration("duration", duration))
		return "", fmt.Errorf("openai api returned empty response")
	}

	slog.InfoContext(ctx, "fact extraction completed", slog.Duration("duration", duration))
	return resp.Choices[0].Message.Content, nil
}
