package repository

import (
	"context"

	"catchup-feed/internal/domain/entity"
)

// RetrievalStrategy selects which half of the hybrid scoring formula the
// Retrieval Engine's query builder can evaluate, depending on what the
// Embedder actually returned for a given query.
type RetrievalStrategy int

const (
	StrategyHybrid RetrievalStrategy = iota
	StrategyVectorOnly
	StrategyKeywordOnly
)

// RetrievalQuery is the Retrieval Engine's resolved request, already decided
// on a strategy, ready for the GraphStore to execute.
type RetrievalQuery struct {
	Strategy   RetrievalStrategy
	Variants   []string  // lowercased keyword variants
	Embedding  []float32 // 384-dim; empty for StrategyKeywordOnly
	WeightKW   float64
	WeightVec  float64
	ResultLimit int
}

// GraphRepository is the Publisher's and Retrieval Engine's view of the Graph
// Store: an idempotent projection target, queried read-only for answers.
type GraphRepository interface {
	// SyncArticles MERGEs each article node, keyed by id, setting scalar
	// properties. Must run before SyncFacts and SyncAssertions in one
	// sync_once() call.
	SyncArticles(ctx context.Context, articles []entity.ArticleNode) error

	// SyncFacts MERGEs each fact node, keyed by id, setting scalars and the
	// embedding array. Must run after SyncArticles and before SyncAssertions.
	SyncFacts(ctx context.Context, facts []entity.FactNode) error

	// SyncAssertions MERGEs the (:Article)-[:ASSERTED]->(:Fact) edge for each
	// assertion. Must run last.
	SyncAssertions(ctx context.Context, assertions []entity.AssertionEdge) error

	// EnsureConstraints asserts the uniqueness constraints on Fact.id and
	// Article.id. Idempotent; safe to call on every process start.
	EnsureConstraints(ctx context.Context) error

	// Answer executes the hybrid/vector-only/keyword-only Cypher query built
	// from q and returns up to q.ResultLimit facts ranked by finalScore desc.
	Answer(ctx context.Context, q RetrievalQuery) ([]entity.RetrievedFact, error)

	// FactGraph returns the neighborhood of one published fact — the fact
	// node, the articles asserting it, and the ASSERTED edges between them —
	// shaped for the UI's graph view. An unknown id yields an empty slice.
	FactGraph(ctx context.Context, factID int64) ([]entity.GraphElement, error)
}
