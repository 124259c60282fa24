// Package hydrate implements the Hydrator stage: it pulls articles whose
// raw_text is still empty off the PENDING processing queue, fetches each
// URL through the readability-based content fetcher, and records the main
// text so the Digester has something to work with.
package hydrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/repository"

	"golang.org/x/sync/errgroup"
)

// ContentFetcher fetches the main text of an article URL. Implemented by
// internal/infra/fetcher.ReadabilityFetcher.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Summary is the structured result of one HydrateOnce pass. It is what
// crosses the Orchestrator boundary instead of an error per article.
type Summary struct {
	Scraped int
	Retried int
	Failed  int
}

// Service drives the hydration stage.
type Service struct {
	ArticleRepo repository.ArticleRepository
	QueueRepo   repository.QueueRepository
	Fetcher     ContentFetcher
	Config      Config
}

// NewService builds a hydrate Service with the given dependencies.
func NewService(articleRepo repository.ArticleRepository, queueRepo repository.QueueRepository, fetcher ContentFetcher, cfg Config) *Service {
	return &Service{
		ArticleRepo: articleRepo,
		QueueRepo:   queueRepo,
		Fetcher:     fetcher,
		Config:      cfg,
	}
}

// HydrateOnce fetches up to Config.BatchSize pending articles concurrently,
// bounded by Config.Concurrency, each under its own Config.PerURLTimeout.
// A fetch failure increments the queue entry's attempts and marks it FAILED
// once Config.MaxAttempts is reached; it never aborts the rest of the batch.
func (s *Service) HydrateOnce(ctx context.Context) (Summary, error) {
	articles, err := s.ArticleRepo.PendingForHydrate(ctx, s.Config.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("hydrate: pending articles: %w", err)
	}
	if len(articles) == 0 {
		return Summary{}, nil
	}

	var (
		mu      sync.Mutex
		summary Summary
	)

	sem := make(chan struct{}, max(1, s.Config.Concurrency))
	eg, egCtx := errgroup.WithContext(ctx)

	for _, art := range articles {
		art := art
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				return nil
			}
			defer func() { <-sem }()

			outcome := s.hydrateOne(egCtx, art)
			mu.Lock()
			switch outcome {
			case outcomeScraped:
				summary.Scraped++
			case outcomeRetried:
				summary.Retried++
			case outcomeFailed:
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return summary, fmt.Errorf("hydrate: %w", err)
	}
	return summary, nil
}

type outcome int

const (
	outcomeScraped outcome = iota
	outcomeRetried
	outcomeFailed
)

func (s *Service) hydrateOne(ctx context.Context, art *entity.Article) outcome {
	fetchCtx, cancel := context.WithTimeout(ctx, s.Config.PerURLTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.Fetcher.FetchContent(fetchCtx, art.URL)
	if err != nil || text == "" {
		if err == nil {
			err = fmt.Errorf("empty main text")
		}
		metrics.RecordContentFetchFailed(time.Since(start))
		return s.recordFailure(ctx, art, err)
	}
	metrics.RecordContentFetchSuccess(time.Since(start), len(text))

	// The stamp must land even when the stage context has just been
	// cancelled, or the fetched text is lost and refetched next pass.
	safeCtx := context.WithoutCancel(ctx)
	if err := s.ArticleRepo.UpdateRawText(safeCtx, art.ID, text); err != nil {
		slog.Warn("hydrate: update raw_text failed",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
		return s.recordFailure(ctx, art, err)
	}
	if err := s.QueueRepo.MarkScraped(safeCtx, art.ID); err != nil {
		slog.Warn("hydrate: mark scraped failed",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
	}
	return outcomeScraped
}

func (s *Service) recordFailure(ctx context.Context, art *entity.Article, cause error) outcome {
	safeCtx := context.WithoutCancel(ctx)
	attempts, err := s.QueueRepo.IncrementAttempts(safeCtx, art.ID)
	if err != nil {
		slog.Warn("hydrate: increment attempts failed",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
		return outcomeRetried
	}

	if attempts >= s.Config.MaxAttempts {
		if err := s.QueueRepo.MarkFailed(safeCtx, art.ID); err != nil {
			slog.Warn("hydrate: mark failed failed",
				slog.Int64("article_id", art.ID), slog.Any("error", err))
		}
		slog.Warn("hydrate: article exhausted attempts",
			slog.Int64("article_id", art.ID),
			slog.String("url", art.URL),
			slog.Int("attempts", attempts),
			slog.Any("error", cause))
		return outcomeFailed
	}

	slog.Info("hydrate: fetch failed, will retry",
		slog.Int64("article_id", art.ID),
		slog.Int("attempts", attempts),
		slog.Any("error", cause))
	return outcomeRetried
}
