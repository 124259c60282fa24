package repository

import (
	"context"

	"catchup-feed/internal/domain/entity"
)

// QueueRepository manages ProcessingQueueEntry rows. At most one open entry exists
// per article_id; is_reference articles never get one.
type QueueRepository interface {
	Enqueue(ctx context.Context, articleID int64) error
	MarkScraped(ctx context.Context, articleID int64) error
	MarkFailed(ctx context.Context, articleID int64) error
	IncrementAttempts(ctx context.Context, articleID int64) (attempts int, err error)
	Get(ctx context.Context, articleID int64) (*entity.ProcessingQueueEntry, error)
}
