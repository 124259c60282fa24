package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/repository"
)

type SourceRepo struct{ db *sql.DB }

func NewSourceRepo(db *sql.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

func scanSource(row interface{ Scan(dest ...any) error }) (*entity.FeedSource, error) {
	var s entity.FeedSource
	var kind string
	if err := row.Scan(&s.ID, &s.Name, &s.FeedURL, &kind, &s.LastCrawledAt, &s.Active); err != nil {
		return nil, err
	}
	s.Kind = entity.FeedKind(kind)
	return &s, nil
}

func (repo *SourceRepo) Get(ctx context.Context, id int64) (*entity.FeedSource, error) {
	const query = `
SELECT id, name, feed_url, kind, last_crawled_at, active
FROM feed_sources
WHERE id = $1
LIMIT 1`
	s, err := scanSource(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return s, nil
}

func (repo *SourceRepo) List(ctx context.Context) ([]*entity.FeedSource, error) {
	const query = `
SELECT id, name, feed_url, kind, last_crawled_at, active
FROM feed_sources
ORDER BY id ASC`
	return repo.listQuery(ctx, query)
}

func (repo *SourceRepo) ListActive(ctx context.Context, kind entity.FeedKind) ([]*entity.FeedSource, error) {
	const query = `
SELECT id, name, feed_url, kind, last_crawled_at, active
FROM feed_sources
WHERE active = TRUE AND kind = $1
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSources(rows)
}

func (repo *SourceRepo) listQuery(ctx context.Context, query string) ([]*entity.FeedSource, error) {
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSources(rows)
}

func scanSources(rows *sql.Rows) ([]*entity.FeedSource, error) {
	sources := make([]*entity.FeedSource, 0, 50)
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (repo *SourceRepo) Create(ctx context.Context, source *entity.FeedSource) error {
	if source.Kind == "" {
		source.Kind = entity.FeedKindRSS
	}
	const query = `
INSERT INTO feed_sources (name, feed_url, kind, last_crawled_at, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		source.Name, source.FeedURL, string(source.Kind), source.LastCrawledAt, source.Active,
	).Scan(&source.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SourceRepo) Update(ctx context.Context, source *entity.FeedSource) error {
	const query = `
UPDATE feed_sources SET
       name            = $1,
       feed_url        = $2,
       kind            = $3,
       last_crawled_at = $4,
       active          = $5
WHERE id = $6`
	res, err := repo.db.ExecContext(ctx, query,
		source.Name, source.FeedURL, string(source.Kind), source.LastCrawledAt, source.Active, source.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *SourceRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM feed_sources WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}

func (repo *SourceRepo) TouchCrawledAt(ctx context.Context, id int64, t time.Time) error {
	const query = `UPDATE feed_sources SET last_crawled_at = $1 WHERE id = $2`
	_, err := repo.db.ExecContext(ctx, query, t, id)
	return err
}
