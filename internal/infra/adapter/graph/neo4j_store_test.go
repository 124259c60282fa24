package graph

import (
	"errors"
	"strings"
	"testing"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/resilience/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestConstraintStatements(t *testing.T) {
	require.Len(t, constraintStatements, 2)
	assert.Contains(t, constraintStatements[0], "(a:Article) REQUIRE a.id IS UNIQUE")
	assert.Contains(t, constraintStatements[1], "(f:Fact) REQUIRE f.id IS UNIQUE")
	for _, stmt := range constraintStatements {
		assert.Contains(t, stmt, "IF NOT EXISTS", "constraints must be idempotent")
	}
}

func TestArticleMergeStatement(t *testing.T) {
	published := "2024-05-01T00:00:00Z"
	cypher, params := articleMergeStatement(entity.ArticleNode{
		ID: 10, Title: "T", URL: "https://example.com/a",
		PublishedDate: &published, IsReference: true,
	})

	assert.Contains(t, cypher, "MERGE (n:Article {id: $id})")
	assert.Equal(t, int64(10), params["id"])
	assert.Equal(t, "T", params["title"])
	assert.Equal(t, "https://example.com/a", params["url"])
	assert.Equal(t, &published, params["published_date"])
	assert.Equal(t, true, params["is_reference"])
}

func TestFactMergeStatement_EmbeddingAsDoubles(t *testing.T) {
	embedding := make([]float32, entity.EmbeddingDim)
	embedding[0] = 0.5

	cypher, params := factMergeStatement(entity.FactNode{
		ID: 1, Subject: "Paris", Predicate: "is capital of", Object: "France",
		Confidence: 0.9, Embedding: embedding,
	})

	assert.Contains(t, cypher, "MERGE (n:Fact {id: $id})")
	assert.Equal(t, "Paris is capital of France", params["text"])

	floats, ok := params["embedding"].([]float64)
	require.True(t, ok, "embedding must travel as float64s")
	assert.Len(t, floats, entity.EmbeddingDim)
	assert.Equal(t, 0.5, floats[0])
}

func TestAssertionMergeStatement_OriginalFactLinksSourceArticle(t *testing.T) {
	cypher, params := assertionMergeStatement(entity.AssertionEdge{
		ID: 1, ArticleID: 10, IsOriginal: true,
	})

	assert.Contains(t, cypher, "MERGE (a)-[:ASSERTED]->(f)")
	assert.Equal(t, int64(10), params["article_id"])
	assert.Equal(t, int64(1), params["fact_id"])
}

func TestAssertionMergeStatement_NonOriginalLinksProvenanceArticle(t *testing.T) {
	_, params := assertionMergeStatement(entity.AssertionEdge{
		ID: 2, ArticleID: 20, ProvenanceID: int64Ptr(7), IsOriginal: false,
	})

	assert.Equal(t, int64(7), params["article_id"],
		"a non-original fact is asserted by its provenance root's article")
	assert.Equal(t, int64(2), params["fact_id"])
}

func TestAssertionMergeStatement_ExternalDowngradeFallsBackToSourceArticle(t *testing.T) {
	// A fact downgraded against an external citation has provenance_id NULL;
	// the edge then links the fact's own source article.
	_, params := assertionMergeStatement(entity.AssertionEdge{
		ID: 3, ArticleID: 30, IsOriginal: false,
	})

	assert.Equal(t, int64(30), params["article_id"])
}

func TestMergeStatements_NeverInlineValues(t *testing.T) {
	published := "2024-05-01T00:00:00Z"
	articleCypher, _ := articleMergeStatement(entity.ArticleNode{
		ID: 99, URL: "https://example.com/inline-check", PublishedDate: &published,
	})
	factCypher, _ := factMergeStatement(entity.FactNode{
		ID: 99, Subject: "inline-check",
	})
	assertionCypher, _ := assertionMergeStatement(entity.AssertionEdge{ID: 99, ArticleID: 98})

	for _, cypher := range []string{articleCypher, factCypher, assertionCypher} {
		assert.NotContains(t, cypher, "99")
		assert.NotContains(t, cypher, "inline-check")
		assert.True(t, strings.Contains(cypher, "$"), "values must be parameterized")
	}
}

func TestExecute_CircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	store := &Neo4jGraphStore{
		circuitBreaker: circuitbreaker.New(circuitbreaker.GraphStoreConfig()),
	}
	boom := errors.New("bolt connection refused")

	// GraphStoreConfig trips at a 60% failure ratio once 5 requests have
	// been observed; a run of straight failures is guaranteed to open it.
	var opened bool
	for i := 0; i < 20; i++ {
		_, err := store.execute("SyncFacts", func() (any, error) {
			return nil, boom
		})
		require.Error(t, err)
		if errors.Is(err, ErrCircuitOpen) {
			opened = true
			break
		}
		assert.ErrorIs(t, err, boom)
	}

	assert.True(t, opened, "breaker should open after consecutive failures")

	// Once open, calls are rejected without invoking the operation.
	invoked := false
	_, err := store.execute("SyncFacts", func() (any, error) {
		invoked = true
		return nil, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
	assert.Contains(t, err.Error(), "SyncFacts")
}
