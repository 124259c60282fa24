package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/repository"

	"golang.org/x/sync/errgroup"
)

// FeedConfig controls the Feed Worker's fan-out over its configured sources.
type FeedConfig struct {
	ConcurrentFeeds int // CONC_FEEDS, default 4
}

// LoadFeedConfig reads CONC_FEEDS, falling back to the default on anything
// unset or non-positive.
func LoadFeedConfig() FeedConfig {
	return FeedConfig{ConcurrentFeeds: getEnvInt("CONC_FEEDS", 4)}
}

// FeedWorker polls the fixed list of trusted RSS/Atom feeds. For each entry
// it upserts an Article with ingestion_source=RSS and, when the upsert
// actually inserted a new row, enqueues a PENDING processing-queue entry.
type FeedWorker struct {
	SourceRepo  repository.SourceRepository
	ArticleRepo repository.ArticleRepository
	QueueRepo   repository.QueueRepository
	Fetcher     FeedFetcher
	Config      FeedConfig
}

// NewFeedWorker builds a FeedWorker with the given dependencies.
func NewFeedWorker(sourceRepo repository.SourceRepository, articleRepo repository.ArticleRepository, queueRepo repository.QueueRepository, fetcher FeedFetcher, cfg FeedConfig) *FeedWorker {
	return &FeedWorker{
		SourceRepo:  sourceRepo,
		ArticleRepo: articleRepo,
		QueueRepo:   queueRepo,
		Fetcher:     fetcher,
		Config:      cfg,
	}
}

// IngestOnce fetches every active RSS source concurrently (bounded by
// Config.ConcurrentFeeds) and returns the total number of newly inserted
// articles. A single source's fetch/parse failure is logged and skipped;
// it never aborts the other sources' processing.
func (w *FeedWorker) IngestOnce(ctx context.Context) (int, error) {
	sources, err := w.SourceRepo.ListActive(ctx, entity.FeedKindRSS)
	if err != nil {
		return 0, fmt.Errorf("ingest feed: list active sources: %w", err)
	}

	var inserted int64
	sem := make(chan struct{}, max(1, w.Config.ConcurrentFeeds))
	eg, egCtx := errgroup.WithContext(ctx)

	for _, src := range sources {
		src := src
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := w.processSource(egCtx, src)
			if err != nil {
				slog.Warn("feed ingest: source failed, skipping",
					slog.Int64("source_id", src.ID),
					slog.String("feed_url", src.FeedURL),
					slog.Any("error", err))
				metrics.RecordFeedCrawlError(src.ID, "ingest_failed")
				return nil
			}
			atomic.AddInt64(&inserted, int64(n))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return int(inserted), fmt.Errorf("ingest feed: %w", err)
	}
	return int(inserted), nil
}

func (w *FeedWorker) processSource(ctx context.Context, src *entity.FeedSource) (int, error) {
	start := time.Now()

	items, err := w.Fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		return 0, fmt.Errorf("fetch feed: %w", err)
	}

	var inserted int
	for _, item := range items {
		if item.URL == "" {
			continue // parse failure on this entry: log, skip, do not crash
		}

		publishedAt := item.PublishedAt
		art := &entity.Article{
			URL:             item.URL,
			Title:           item.Title,
			Publisher:       src.Name,
			IngestionSource: entity.SourceRSS,
			PublishedAt:     &publishedAt,
			CreatedAt:       time.Now(),
		}

		id, wasInserted, err := w.ArticleRepo.Create(ctx, art)
		if err != nil {
			slog.Warn("feed ingest: article upsert failed",
				slog.Int64("source_id", src.ID),
				slog.String("url", item.URL),
				slog.Any("error", err))
			continue
		}
		if !wasInserted {
			continue // idempotent on url: already seen, nothing further to do
		}

		if err := w.QueueRepo.Enqueue(ctx, id); err != nil {
			slog.Warn("feed ingest: enqueue failed",
				slog.Int64("article_id", id), slog.Any("error", err))
		}
		inserted++
	}

	safeCtx := context.WithoutCancel(ctx)
	if err := w.SourceRepo.TouchCrawledAt(safeCtx, src.ID, time.Now()); err != nil {
		return inserted, fmt.Errorf("touch crawled at: %w", err)
	}

	metrics.RecordFeedCrawl(src.ID, time.Since(start), int64(len(items)), int64(inserted), int64(len(items)-inserted))
	return inserted, nil
}
