// Package ingest implements the two Ingest Worker variants — Feed (RSS) and
// Events — that introduce new Article rows into the Fact Store. Both share
// one contract: IngestOnce is idempotent on url and never fails the whole
// batch over a single bad entry.
package ingest

import (
	"context"
	"time"
)

// Worker is the contract the Orchestrator fans out over. Both FeedWorker and
// EventsWorker implement it.
type Worker interface {
	// IngestOnce runs one ingestion pass and returns the number of new
	// (previously unseen) articles it inserted.
	IngestOnce(ctx context.Context) (int, error)
}

// FeedItem is one entry parsed out of an RSS/Atom feed, pre-upsert.
type FeedItem struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// FeedFetcher fetches and parses a single feed URL. Implemented by
// internal/infra/scraper.RSSFetcher.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]FeedItem, error)
}
