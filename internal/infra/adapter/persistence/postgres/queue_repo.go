package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/repository"
)

type QueueRepo struct{ db *sql.DB }

func NewQueueRepo(db *sql.DB) repository.QueueRepository {
	return &QueueRepo{db: db}
}

func (repo *QueueRepo) Enqueue(ctx context.Context, articleID int64) error {
	const query = `
INSERT INTO processing_queue (article_id, status, attempts)
VALUES ($1, 'PENDING', 0)
ON CONFLICT (article_id) DO NOTHING`
	_, err := repo.db.ExecContext(ctx, query, articleID)
	if err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}

func (repo *QueueRepo) MarkScraped(ctx context.Context, articleID int64) error {
	const query = `UPDATE processing_queue SET status = 'SCRAPED' WHERE article_id = $1`
	_, err := repo.db.ExecContext(ctx, query, articleID)
	if err != nil {
		return fmt.Errorf("MarkScraped: %w", err)
	}
	return nil
}

func (repo *QueueRepo) MarkFailed(ctx context.Context, articleID int64) error {
	const query = `UPDATE processing_queue SET status = 'FAILED' WHERE article_id = $1`
	_, err := repo.db.ExecContext(ctx, query, articleID)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

func (repo *QueueRepo) IncrementAttempts(ctx context.Context, articleID int64) (int, error) {
	const query = `
UPDATE processing_queue SET attempts = attempts + 1
WHERE article_id = $1
RETURNING attempts`
	var attempts int
	err := repo.db.QueryRowContext(ctx, query, articleID).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("IncrementAttempts: %w", err)
	}
	return attempts, nil
}

func (repo *QueueRepo) Get(ctx context.Context, articleID int64) (*entity.ProcessingQueueEntry, error) {
	const query = `
SELECT id, article_id, status, attempts
FROM processing_queue
WHERE article_id = $1
LIMIT 1`
	var e entity.ProcessingQueueEntry
	var status string
	err := repo.db.QueryRowContext(ctx, query, articleID).Scan(&e.ID, &e.ArticleID, &status, &e.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	e.Status = entity.QueueStatus(status)
	return &e, nil
}
