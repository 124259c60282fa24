package repository

import (
	"context"
	"time"

	"catchup-feed/internal/domain/entity"
)

// ArticleRepository is the Fact Store's authoritative store of Article rows.
type ArticleRepository interface {
	Get(ctx context.Context, id int64) (*entity.Article, error)
	GetByURL(ctx context.Context, url string) (*entity.Article, error)

	// Create inserts a new article. On a url-uniqueness conflict it is a no-op and
	// returns the existing row's ID with inserted=false, matching Ingest's
	// idempotent-on-url contract.
	Create(ctx context.Context, article *entity.Article) (id int64, inserted bool, err error)

	// UpdateRawText sets raw_text for an article that the Hydrator just fetched.
	UpdateRawText(ctx context.Context, articleID int64, rawText string) error

	// StampProcessed sets processed_at=now() for an article the Digester finished with.
	StampProcessed(ctx context.Context, articleID int64, at time.Time) error

	// PendingForHydrate returns up to limit articles with raw_text IS NULL whose queue
	// entry is PENDING, for the Hydrator to fetch.
	PendingForHydrate(ctx context.Context, limit int) ([]*entity.Article, error)

	// PendingForDigest returns up to limit articles with processed_at IS NULL AND
	// url IS NOT NULL, for the Digester's process_batch().
	PendingForDigest(ctx context.Context, limit int) ([]*entity.Article, error)

	// UpsertReference creates or returns the existing reference article (is_reference=true)
	// recording an external provenance citation at externalURL/publishedAt.
	UpsertReference(ctx context.Context, externalURL string, publishedAt time.Time) (id int64, err error)

	// PublishCandidates returns articles satisfying Quality Gate B: topic-classified
	// originals with processed_at set, or reference articles.
	PublishCandidates(ctx context.Context) ([]*entity.Article, error)

	// ExistsByURLBatch batch-checks URL presence so an Ingest Worker can filter a
	// whole feed page against the Fact Store in one round trip instead of one per item.
	ExistsByURLBatch(ctx context.Context, urls []string) (map[string]bool, error)
}
