package extractor

import (
	"context"
	"log/slog"

	"catchup-feed/internal/domain/entity"
)

// Fallback tries primary and, on a hard error (not a contract-violation
// empty list — that is a valid, successful response), retries the whole
// call against secondary. The teacher's own dual-provider setup (cmd/worker
// createSummarizer) picks one provider for the process lifetime via
// SUMMARIZER_TYPE; this pipeline's Extractor goes further per its own
// contract ("Claude primary with an OpenAI fallback") and fails over
// per-call instead.
type Fallback struct {
	primary   Extractor
	secondary Extractor
}

// NewFallback wraps primary and secondary into a single Extractor.
func NewFallback(primary, secondary Extractor) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) ExtractFacts(ctx context.Context, text string) ([]entity.Candidate, error) {
	candidates, err := f.primary.ExtractFacts(ctx, text)
	if err == nil {
		return candidates, nil
	}

	slog.WarnContext(ctx, "extractor: primary failed, falling back to secondary",
		slog.String("error", err.Error()))

	candidates, fallbackErr := f.secondary.ExtractFacts(ctx, text)
	if fallbackErr != nil {
		return nil, fallbackErr
	}
	return candidates, nil
}
