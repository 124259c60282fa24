package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/repository"

	"github.com/lib/pq"
)

type ArticleRepo struct{ db *sql.DB }

func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

const articleColumns = `id, url, title, publisher, ingestion_source, published_at, raw_text, processed_at, is_reference, created_at`

func scanArticle(row interface{ Scan(dest ...any) error }) (*entity.Article, error) {
	var a entity.Article
	var source string
	if err := row.Scan(&a.ID, &a.URL, &a.Title, &a.Publisher, &source,
		&a.PublishedAt, &a.RawText, &a.ProcessedAt, &a.IsReference, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.IngestionSource = entity.IngestionSource(source)
	return &a, nil
}

func (repo *ArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE id = $1 LIMIT 1`, articleColumns)
	a, err := scanArticle(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

func (repo *ArticleRepo) GetByURL(ctx context.Context, url string) (*entity.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE url = $1 LIMIT 1`, articleColumns)
	a, err := scanArticle(repo.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByURL: %w", err)
	}
	return a, nil
}

// Create inserts a new article, idempotent on url. A conflict is treated as a no-op
// that returns the existing row's id, matching the Ingest Worker's "ingest twice,
// article count unchanged" contract.
func (repo *ArticleRepo) Create(ctx context.Context, article *entity.Article) (int64, bool, error) {
	const query = `
INSERT INTO articles (url, title, publisher, ingestion_source, published_at, raw_text, processed_at, is_reference, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (url) DO NOTHING
RETURNING id`

	var id int64
	err := repo.db.QueryRowContext(ctx, query,
		article.URL, article.Title, article.Publisher, string(article.IngestionSource),
		article.PublishedAt, article.RawText, article.ProcessedAt, article.IsReference, article.CreatedAt,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := repo.GetByURL(ctx, article.URL)
		if getErr != nil {
			return 0, false, fmt.Errorf("Create: lookup existing: %w", getErr)
		}
		if existing == nil {
			return 0, false, fmt.Errorf("Create: conflict but no existing row for url %q", article.URL)
		}
		return existing.ID, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("Create: %w", err)
	}
	article.ID = id
	return id, true, nil
}

func (repo *ArticleRepo) UpdateRawText(ctx context.Context, articleID int64, rawText string) error {
	const query = `UPDATE articles SET raw_text = $1 WHERE id = $2`
	res, err := repo.db.ExecContext(ctx, query, rawText, articleID)
	if err != nil {
		return fmt.Errorf("UpdateRawText: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("UpdateRawText: no rows affected")
	}
	return nil
}

func (repo *ArticleRepo) StampProcessed(ctx context.Context, articleID int64, at time.Time) error {
	const query = `UPDATE articles SET processed_at = $1 WHERE id = $2`
	res, err := repo.db.ExecContext(ctx, query, at, articleID)
	if err != nil {
		return fmt.Errorf("StampProcessed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("StampProcessed: no rows affected")
	}
	return nil
}

func (repo *ArticleRepo) PendingForHydrate(ctx context.Context, limit int) ([]*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM articles a
INNER JOIN processing_queue q ON q.article_id = a.id
WHERE a.raw_text IS NULL AND q.status = 'PENDING'
ORDER BY a.created_at ASC
LIMIT $1`, prefixColumns("a", articleColumns))
	return repo.queryArticles(ctx, query, limit)
}

func (repo *ArticleRepo) PendingForDigest(ctx context.Context, limit int) ([]*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM articles
WHERE processed_at IS NULL AND url IS NOT NULL
ORDER BY created_at ASC
LIMIT $1`, articleColumns)
	return repo.queryArticles(ctx, query, limit)
}

func (repo *ArticleRepo) PublishCandidates(ctx context.Context) ([]*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM articles
WHERE (processed_at IS NOT NULL AND is_reference = FALSE) OR is_reference = TRUE`, articleColumns)
	return repo.queryArticles(ctx, query)
}

func (repo *ArticleRepo) queryArticles(ctx context.Context, query string, args ...any) ([]*entity.Article, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queryArticles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 100)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("queryArticles: Scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (repo *ArticleRepo) UpsertReference(ctx context.Context, externalURL string, publishedAt time.Time) (int64, error) {
	const query = `
INSERT INTO articles (url, title, publisher, ingestion_source, published_at, is_reference, created_at)
VALUES ($1, '', '', 'EVENTS', $2, TRUE, NOW())
ON CONFLICT (url) DO UPDATE SET published_at = EXCLUDED.published_at
RETURNING id`
	var id int64
	err := repo.db.QueryRowContext(ctx, query, externalURL, publishedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("UpsertReference: %w", err)
	}
	return id, nil
}

// ExistsByURLBatch batch-checks URL presence to avoid an N+1 round trip per feed item.
func (repo *ArticleRepo) ExistsByURLBatch(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return map[string]bool{}, nil
	}
	const query = `SELECT url FROM articles WHERE url = ANY($1)`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(urls))
	if err != nil {
		return nil, fmt.Errorf("ExistsByURLBatch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("ExistsByURLBatch: Scan: %w", err)
		}
		result[url] = true
	}
	return result, rows.Err()
}
