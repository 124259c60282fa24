package repository

import (
	"context"
	"time"

	"catchup-feed/internal/domain/entity"
)

// NearestFact is one row of a cosine-distance nearest-neighbor result.
type NearestFact struct {
	Fact           *entity.Fact
	ArticlePublished *time.Time
	CosineDistance float64
}

// FactRepository is the Fact Store's authoritative store of extracted_facts rows.
// Every nearest-neighbor query is scoped by an explicit application-side deadline
// (T_QUERY), never a server-side session timeout, per the pipeline's pooled-connection
// design constraint.
type FactRepository interface {
	// Create inserts a new fact. The caller has already run the dedupe gate via
	// FindNearest; Create itself only guards against a last-moment unique-constraint
	// race, which it treats as a no-op.
	Create(ctx context.Context, fact *entity.Fact) (id int64, inserted bool, err error)

	Get(ctx context.Context, id int64) (*entity.Fact, error)

	// FindNearest returns the single nearest fact (by cosine distance on embedding) to
	// the given vector, across the whole Fact Store (global dedupe scope — see
	// DESIGN.md's Open Question resolution). Returns nil if the store has no facts yet.
	FindNearest(ctx context.Context, embedding []float32) (*NearestFact, error)

	// FindWithinDistance returns every fact within maxDistance cosine distance of
	// embedding, joined with its source article's published_date, ordered by that
	// date ascending — used by the Provenance Hunter's internal search for the
	// earliest prior assertion.
	FindWithinDistance(ctx context.Context, embedding []float32, maxDistance float64) ([]NearestFact, error)

	// PendingForProvenance returns up to limit facts with checked_at IS NULL AND
	// embedding IS NOT NULL, for the Provenance Hunter's hunt_once().
	PendingForProvenance(ctx context.Context, limit int) ([]*entity.Fact, error)

	// StampChecked records the Provenance Hunter's decision for one fact. It is the
	// only mutation a Fact ever receives after creation.
	StampChecked(ctx context.Context, factID int64, checkedAt time.Time, isOriginal bool, provenanceID *int64) error

	// PublishCandidates returns facts satisfying Quality Gate A: is_original=true AND
	// checked_at IS NOT NULL.
	PublishCandidates(ctx context.Context) ([]*entity.Fact, error)
}
