// Package publish implements the Publisher stage: it projects verified
// facts, their articles, and the assertions linking them into the Graph
// Store via idempotent MERGE. The Graph Store holds no authoritative state;
// this projection can always be rebuilt from the Fact Store.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/repository"
)

// Summary is the structured result of one SyncOnce pass.
type Summary struct {
	Articles   int
	Facts      int
	Assertions int
}

// Service drives the publication stage.
type Service struct {
	FactRepo    repository.FactRepository
	ArticleRepo repository.ArticleRepository
	Graph       repository.GraphRepository

	// AuditWriter, when set, receives each pass's transport payload as one
	// newline-terminated JSON document before the MERGEs run.
	AuditWriter io.Writer
}

// NewService builds a publish Service with the given dependencies.
func NewService(factRepo repository.FactRepository, articleRepo repository.ArticleRepository, graph repository.GraphRepository) *Service {
	return &Service{
		FactRepo:    factRepo,
		ArticleRepo: articleRepo,
		Graph:       graph,
	}
}

// SyncOnce selects everything behind the quality gates and MERGEs it into
// the Graph Store: articles first, then facts, then ASSERTED edges. Partial
// failure is acceptable; because every write is an idempotent MERGE, the
// next run completes the remainder.
func (s *Service) SyncOnce(ctx context.Context) (Summary, error) {
	// Quality Gate A: only checked originals are published.
	facts, err := s.FactRepo.PublishCandidates(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("publish: fact candidates: %w", err)
	}
	// Quality Gate B: processed originals and reference articles.
	articles, err := s.ArticleRepo.PublishCandidates(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("publish: article candidates: %w", err)
	}

	articleNodes := toArticleNodes(articles)
	factNodes := toFactNodes(facts)
	assertions := deriveAssertions(facts)

	if s.AuditWriter != nil {
		if err := buildPayload(articleNodes, factNodes, assertions).Encode(s.AuditWriter); err != nil {
			slog.Warn("publish: audit payload write failed", slog.Any("error", err))
		}
	}

	var summary Summary
	if err := s.Graph.SyncArticles(ctx, articleNodes); err != nil {
		return summary, fmt.Errorf("publish: sync articles: %w", err)
	}
	summary.Articles = len(articleNodes)
	metrics.RecordGraphSynced("article", summary.Articles)

	if err := s.Graph.SyncFacts(ctx, factNodes); err != nil {
		return summary, fmt.Errorf("publish: sync facts: %w", err)
	}
	summary.Facts = len(factNodes)
	metrics.RecordGraphSynced("fact", summary.Facts)

	if err := s.Graph.SyncAssertions(ctx, assertions); err != nil {
		return summary, fmt.Errorf("publish: sync assertions: %w", err)
	}
	summary.Assertions = len(assertions)
	metrics.RecordGraphSynced("assertion", summary.Assertions)

	return summary, nil
}

func toArticleNodes(articles []*entity.Article) []entity.ArticleNode {
	nodes := make([]entity.ArticleNode, 0, len(articles))
	for _, a := range articles {
		var published *string
		if a.PublishedAt != nil {
			s := a.PublishedAt.Format(time.RFC3339)
			published = &s
		}
		nodes = append(nodes, entity.ArticleNode{
			ID:            a.ID,
			Title:         a.Title,
			URL:           a.URL,
			PublishedDate: published,
			IsReference:   a.IsReference,
		})
	}
	return nodes
}

func toFactNodes(facts []*entity.Fact) []entity.FactNode {
	nodes := make([]entity.FactNode, 0, len(facts))
	for _, f := range facts {
		nodes = append(nodes, entity.FactNode{
			ID:         f.ID,
			Subject:    f.Subject,
			Predicate:  f.Predicate,
			Object:     f.Object,
			Confidence: f.Confidence,
			Embedding:  f.Embedding,
		})
	}
	return nodes
}

func deriveAssertions(facts []*entity.Fact) []entity.AssertionEdge {
	edges := make([]entity.AssertionEdge, 0, len(facts))
	for _, f := range facts {
		isOriginal := f.IsOriginal != nil && *f.IsOriginal
		edges = append(edges, entity.AssertionEdge{
			ID:           f.ID,
			ArticleID:    f.ArticleID,
			ProvenanceID: f.ProvenanceID,
			IsOriginal:   isOriginal,
		})
	}
	return edges
}
