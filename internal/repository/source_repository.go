package repository

import (
	"context"
	"time"

	"catchup-feed/internal/domain/entity"
)

// SourceRepository manages the fixed list of trusted feeds polled by the Ingest Workers.
type SourceRepository interface {
	Get(ctx context.Context, id int64) (*entity.FeedSource, error)
	List(ctx context.Context) ([]*entity.FeedSource, error)
	ListActive(ctx context.Context, kind entity.FeedKind) ([]*entity.FeedSource, error)
	Create(ctx context.Context, source *entity.FeedSource) error
	Update(ctx context.Context, source *entity.FeedSource) error
	Delete(ctx context.Context, id int64) error
	TouchCrawledAt(ctx context.Context, id int64, t time.Time) error
}
