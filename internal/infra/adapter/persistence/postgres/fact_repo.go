package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/repository"

	"github.com/pgvector/pgvector-go"
)

// DefaultQueryTimeout bounds every Fact Store nearest-neighbor query application-side
// (T_QUERY ≤ 50s per the spec); it is never a server-side session setting because pooled
// connections discard session state between transactions.
const DefaultQueryTimeout = 50 * time.Second

type FactRepo struct{ db *sql.DB }

func NewFactRepo(db *sql.DB) repository.FactRepository {
	return &FactRepo{db: db}
}

const factColumns = `id, article_id, subject, predicate, object, confidence, embedding, created_at, checked_at, is_original, provenance_id`

func scanFact(row interface{ Scan(dest ...any) error }) (*entity.Fact, error) {
	var f entity.Fact
	var vector pgvector.Vector
	if err := row.Scan(&f.ID, &f.ArticleID, &f.Subject, &f.Predicate, &f.Object, &f.Confidence,
		&vector, &f.CreatedAt, &f.CheckedAt, &f.IsOriginal, &f.ProvenanceID); err != nil {
		return nil, err
	}
	f.Embedding = vector.Slice()
	return &f, nil
}

func (repo *FactRepo) Create(ctx context.Context, fact *entity.Fact) (int64, bool, error) {
	if err := entity.ValidateEmbeddingDim(fact.Embedding); err != nil {
		return 0, false, fmt.Errorf("Create: %w", err)
	}

	const query = `
INSERT INTO extracted_facts (article_id, subject, predicate, object, confidence, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

	vector := pgvector.NewVector(fact.Embedding)
	var id int64
	err := repo.db.QueryRowContext(ctx, query,
		fact.ArticleID, fact.Subject, fact.Predicate, fact.Object, fact.Confidence, vector, fact.CreatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("Create: %w", err)
	}
	fact.ID = id
	return id, true, nil
}

// isUniqueViolation treats a unique-constraint violation as a benign no-op insert,
// per the pipeline's persistent-store error taxonomy.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "unique constraint") || strings.Contains(err.Error(), "duplicate key")
}

func (repo *FactRepo) Get(ctx context.Context, id int64) (*entity.Fact, error) {
	query := fmt.Sprintf(`SELECT %s FROM extracted_facts WHERE id = $1 LIMIT 1`, factColumns)
	f, err := scanFact(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return f, nil
}

// FindNearest is the dedupe gate: the single nearest fact by cosine distance, across
// the entire Fact Store (global scope, per DESIGN.md's Open Question resolution).
func (repo *FactRepo) FindNearest(ctx context.Context, embedding []float32) (*repository.NearestFact, error) {
	queryCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if err := entity.ValidateEmbeddingDim(embedding); err != nil {
		return nil, fmt.Errorf("FindNearest: %w", err)
	}
	vector := pgvector.NewVector(embedding)

	query := fmt.Sprintf(`
SELECT f.%s, f.embedding <=> $1 AS distance
FROM extracted_facts f
ORDER BY f.embedding <=> $1
LIMIT 1`, prefixColumns("f", factColumns))

	var f entity.Fact
	var v pgvector.Vector
	var distance float64
	row := repo.db.QueryRowContext(queryCtx, query, vector)
	err := row.Scan(&f.ID, &f.ArticleID, &f.Subject, &f.Predicate, &f.Object, &f.Confidence,
		&v, &f.CreatedAt, &f.CheckedAt, &f.IsOriginal, &f.ProvenanceID, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindNearest: %w", err)
	}
	f.Embedding = v.Slice()
	return &repository.NearestFact{Fact: &f, CosineDistance: distance}, nil
}

// FindWithinDistance returns every fact within maxDistance of embedding, joined with
// its source article's published_date and ordered by that date ascending — the
// Provenance Hunter's internal-search primitive for finding the earliest prior assertion.
// Facts already downgraded (is_original = FALSE) are excluded: a provenance_id must
// always target an original fact, so a non-original can never serve as a prior.
func (repo *FactRepo) FindWithinDistance(ctx context.Context, embedding []float32, maxDistance float64) ([]repository.NearestFact, error) {
	queryCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if err := entity.ValidateEmbeddingDim(embedding); err != nil {
		return nil, fmt.Errorf("FindWithinDistance: %w", err)
	}
	vector := pgvector.NewVector(embedding)

	query := fmt.Sprintf(`
SELECT f.%s, f.embedding <=> $1 AS distance, a.published_at
FROM extracted_facts f
INNER JOIN articles a ON a.id = f.article_id
WHERE f.embedding <=> $1 <= $2
  AND f.is_original IS DISTINCT FROM FALSE
ORDER BY a.published_at ASC NULLS LAST`, prefixColumns("f", factColumns))

	rows, err := repo.db.QueryContext(queryCtx, query, vector, maxDistance)
	if err != nil {
		return nil, fmt.Errorf("FindWithinDistance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []repository.NearestFact
	for rows.Next() {
		var f entity.Fact
		var v pgvector.Vector
		var distance float64
		var publishedAt *time.Time
		if err := rows.Scan(&f.ID, &f.ArticleID, &f.Subject, &f.Predicate, &f.Object, &f.Confidence,
			&v, &f.CreatedAt, &f.CheckedAt, &f.IsOriginal, &f.ProvenanceID, &distance, &publishedAt); err != nil {
			return nil, fmt.Errorf("FindWithinDistance: Scan: %w", err)
		}
		f.Embedding = v.Slice()
		results = append(results, repository.NearestFact{Fact: &f, CosineDistance: distance, ArticlePublished: publishedAt})
	}
	return results, rows.Err()
}

func (repo *FactRepo) PendingForProvenance(ctx context.Context, limit int) ([]*entity.Fact, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM extracted_facts
WHERE checked_at IS NULL AND embedding IS NOT NULL
ORDER BY created_at ASC
LIMIT $1`, factColumns)
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("PendingForProvenance: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFacts(rows)
}

func (repo *FactRepo) PublishCandidates(ctx context.Context) ([]*entity.Fact, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM extracted_facts
WHERE is_original = TRUE AND checked_at IS NOT NULL`, factColumns)
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("PublishCandidates: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFacts(rows)
}

func scanFacts(rows *sql.Rows) ([]*entity.Fact, error) {
	facts := make([]*entity.Fact, 0, 100)
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (repo *FactRepo) StampChecked(ctx context.Context, factID int64, checkedAt time.Time, isOriginal bool, provenanceID *int64) error {
	const query = `
UPDATE extracted_facts
SET checked_at = $1, is_original = $2, provenance_id = $3
WHERE id = $4`
	res, err := repo.db.ExecContext(ctx, query, checkedAt, isOriginal, provenanceID, factID)
	if err != nil {
		return fmt.Errorf("StampChecked: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("StampChecked: no rows affected")
	}
	return nil
}

// prefixColumns rewrites a comma-separated column list with a table alias prefix,
// used when a join makes the bare column list ambiguous.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
