package retrieval_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/repository"
	"catchup-feed/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGraph struct {
	lastQuery *repository.RetrievalQuery
	results   []entity.RetrievedFact
	err       error
}

func (g *stubGraph) SyncArticles(context.Context, []entity.ArticleNode) error     { return nil }
func (g *stubGraph) SyncFacts(context.Context, []entity.FactNode) error           { return nil }
func (g *stubGraph) SyncAssertions(context.Context, []entity.AssertionEdge) error { return nil }
func (g *stubGraph) EnsureConstraints(context.Context) error                      { return nil }

func (g *stubGraph) FactGraph(context.Context, int64) ([]entity.GraphElement, error) {
	return nil, nil
}

func (g *stubGraph) Answer(_ context.Context, q repository.RetrievalQuery) ([]entity.RetrievedFact, error) {
	g.lastQuery = &q
	if g.err != nil {
		return nil, g.err
	}
	if len(g.results) > q.ResultLimit {
		return g.results[:q.ResultLimit], nil
	}
	return g.results, nil
}

type stubVariants struct {
	variants []string
	err      error
	delay    time.Duration
}

func (v *stubVariants) ExpandQuery(ctx context.Context, _ string, _ int) ([]string, error) {
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return v.variants, v.err
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vector, e.err
}

func vector384() []float32 {
	v := make([]float32, entity.EmbeddingDim)
	v[0] = 1
	return v
}

func testConfig() retrieval.Config {
	return retrieval.Config{NExpand: 3, NResults: 15, WeightKeyword: 0.5, WeightVector: 0.5}
}

func TestAnswer_HybridWhenEmbeddingIs384(t *testing.T) {
	graph := &stubGraph{results: []entity.RetrievedFact{{ID: 1, Statement: "s p o"}}}
	engine := retrieval.NewEngine(graph,
		&stubVariants{variants: []string{"Other Phrasing"}},
		&stubEmbedder{vector: vector384()},
		testConfig())

	ans, err := engine.Answer(context.Background(), "what is the capital of France")

	require.NoError(t, err)
	assert.Equal(t, repository.StrategyHybrid, ans.Strategy)
	require.NotNil(t, graph.lastQuery)
	assert.Len(t, graph.lastQuery.Embedding, entity.EmbeddingDim)
	assert.Equal(t, 15, graph.lastQuery.ResultLimit)
}

func TestAnswer_KeywordOnlyWhenEmbedderFails(t *testing.T) {
	graph := &stubGraph{}
	engine := retrieval.NewEngine(graph,
		&stubVariants{variants: []string{"variant one"}},
		&stubEmbedder{err: errors.New("sidecar down")},
		testConfig())

	ans, err := engine.Answer(context.Background(), "some query")

	require.NoError(t, err)
	assert.Equal(t, repository.StrategyKeywordOnly, ans.Strategy)
	assert.Empty(t, graph.lastQuery.Embedding)
}

func TestAnswer_VectorOnlyOnWrongDimension(t *testing.T) {
	graph := &stubGraph{}
	engine := retrieval.NewEngine(graph,
		&stubVariants{},
		&stubEmbedder{vector: make([]float32, 128)},
		testConfig())

	ans, err := engine.Answer(context.Background(), "some query")

	require.NoError(t, err)
	assert.Equal(t, repository.StrategyVectorOnly, ans.Strategy)
}

func TestAnswer_VariantFailureDegradesToQueryAlone(t *testing.T) {
	graph := &stubGraph{}
	engine := retrieval.NewEngine(graph,
		&stubVariants{err: errors.New("llm unavailable")},
		&stubEmbedder{vector: vector384()},
		testConfig())

	ans, err := engine.Answer(context.Background(), "The Capital Of France")

	require.NoError(t, err)
	assert.Equal(t, repository.StrategyHybrid, ans.Strategy)
	assert.Equal(t, []string{"the capital of france"}, graph.lastQuery.Variants)
}

func TestAnswer_VariantsLowercasedAndDeduplicated(t *testing.T) {
	graph := &stubGraph{}
	engine := retrieval.NewEngine(graph,
		&stubVariants{variants: []string{"Paris Capital", "paris capital", "  ", "French capital"}},
		&stubEmbedder{vector: vector384()},
		testConfig())

	_, err := engine.Answer(context.Background(), "paris")

	require.NoError(t, err)
	assert.Equal(t, []string{"paris", "paris capital", "french capital"}, graph.lastQuery.Variants)
}

func TestAnswer_RejectsOversizedQuery(t *testing.T) {
	engine := retrieval.NewEngine(&stubGraph{}, &stubVariants{}, &stubEmbedder{}, testConfig())

	_, err := engine.Answer(context.Background(), strings.Repeat("q", retrieval.MaxQueryLen+1))

	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestAnswer_EmptyResultSetIsNotAnError(t *testing.T) {
	engine := retrieval.NewEngine(&stubGraph{}, &stubVariants{}, &stubEmbedder{vector: vector384()}, testConfig())

	ans, err := engine.Answer(context.Background(), "nothing matches this")

	require.NoError(t, err)
	assert.Empty(t, ans.Results)
}

func TestAnswer_ResultLimitHonored(t *testing.T) {
	results := make([]entity.RetrievedFact, 40)
	for i := range results {
		results[i] = entity.RetrievedFact{ID: int64(i)}
	}
	graph := &stubGraph{results: results}

	cfg := testConfig()
	cfg.NResults = 15
	engine := retrieval.NewEngine(graph, &stubVariants{}, &stubEmbedder{vector: vector384()}, cfg)

	ans, err := engine.Answer(context.Background(), "broad query")

	require.NoError(t, err)
	assert.LessOrEqual(t, len(ans.Results), 15)
}

func TestAnswer_GraphOutageSurfacesError(t *testing.T) {
	graph := &stubGraph{err: errors.New("connection refused")}
	engine := retrieval.NewEngine(graph, &stubVariants{}, &stubEmbedder{vector: vector384()}, testConfig())

	_, err := engine.Answer(context.Background(), "any query")

	require.Error(t, err)
}
