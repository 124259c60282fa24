// Package retrieval implements the hybrid retrieval engine: a natural-
// language query is expanded into keyword variants and embedded, then both
// signals rank facts in the Graph Store through one parameterized Cypher
// query. When either signal is missing the engine degrades to the other
// rather than failing the request.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/repository"
)

// MaxQueryLen is the engine's input ceiling.
const MaxQueryLen = 512

// VariantGenerator produces up to n alternative phrasings of a query.
// Implemented by internal/infra/adapter/extractor.QueryExpander.
type VariantGenerator interface {
	ExpandQuery(ctx context.Context, query string, n int) ([]string, error)
}

// Embedder obtains a vector for a short text. Implemented by
// internal/infra/adapter/embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Answer is the ranked result of one query.
type Answer struct {
	Query    string
	Strategy repository.RetrievalStrategy
	Results  []entity.RetrievedFact
}

// Engine drives retrieval.
type Engine struct {
	Graph    repository.GraphRepository
	Variants VariantGenerator
	Embedder Embedder
	Config   Config
}

// NewEngine builds a retrieval Engine with the given dependencies.
func NewEngine(graph repository.GraphRepository, variants VariantGenerator, embedder Embedder, cfg Config) *Engine {
	return &Engine{
		Graph:    graph,
		Variants: variants,
		Embedder: embedder,
		Config:   cfg,
	}
}

// Answer expands and embeds the query concurrently, picks a strategy from
// what actually came back, and executes the hybrid Cypher query. A query
// matching nothing returns an empty result set, not an error.
func (e *Engine) Answer(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", entity.ErrInvalidInput)
	}
	if len(query) > MaxQueryLen {
		return nil, fmt.Errorf("%w: query exceeds %d characters", entity.ErrInvalidInput, MaxQueryLen)
	}

	start := time.Now()

	variantsRes, embeddingRes := joinSettled(ctx,
		func(ctx context.Context) ([]string, error) {
			return e.Variants.ExpandQuery(ctx, query, e.Config.NExpand)
		},
		func(ctx context.Context) ([]float32, error) {
			return e.Embedder.Embed(ctx, query)
		},
	)

	variants := e.keywordVariants(query, variantsRes)
	strategy := chooseStrategy(embeddingRes)

	q := repository.RetrievalQuery{
		Strategy:    strategy,
		Variants:    variants,
		WeightKW:    e.Config.WeightKeyword,
		WeightVec:   e.Config.WeightVector,
		ResultLimit: e.Config.NResults,
	}
	if strategy != repository.StrategyKeywordOnly {
		q.Embedding = embeddingRes.Value
	}

	results, err := e.Graph.Answer(ctx, q)
	metrics.RecordRetrievalQuery(strategyLabel(strategy), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	return &Answer{Query: query, Strategy: strategy, Results: results}, nil
}

// keywordVariants merges the LLM's phrasings with the original query,
// lowercased and deduplicated. A failed expansion degrades to the query
// alone; it never fails the request.
func (e *Engine) keywordVariants(query string, res settled[[]string]) []string {
	if res.Err != nil {
		slog.Warn("retrieval: variant expansion failed, using query only",
			slog.Any("error", res.Err))
	}

	seen := make(map[string]bool)
	variants := make([]string, 0, len(res.Value)+1)
	for _, v := range append([]string{query}, res.Value...) {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
		if len(variants) > e.Config.NExpand {
			break
		}
	}
	return variants
}

// chooseStrategy inspects what the Embedder actually returned: a proper
// 384-vector enables hybrid scoring, a wrong-length vector falls back to
// vector-only (never expected in normal operation), and no vector at all
// means keyword-only.
func chooseStrategy(res settled[[]float32]) repository.RetrievalStrategy {
	if res.Err != nil || len(res.Value) == 0 {
		return repository.StrategyKeywordOnly
	}
	if len(res.Value) == entity.EmbeddingDim {
		return repository.StrategyHybrid
	}
	return repository.StrategyVectorOnly
}

func strategyLabel(s repository.RetrievalStrategy) string {
	switch s {
	case repository.StrategyHybrid:
		return "hybrid"
	case repository.StrategyVectorOnly:
		return "vector"
	default:
		return "keyword"
	}
}
