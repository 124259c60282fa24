// Package digest implements the central fact-extraction stage: it turns the
// raw text of unprocessed articles into deduplicated, embedded facts. Per
// article it calls the Extractor once (retried once on a hard failure),
// embeds each surviving candidate, runs the cosine-distance dedupe gate
// against the Fact Store, inserts what is genuinely new, and stamps the
// article processed.
package digest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/repository"
)

// Extractor obtains candidate (subject, predicate, object, confidence)
// triples from article text. Implemented by internal/infra/adapter/extractor.
type Extractor interface {
	ExtractFacts(ctx context.Context, text string) ([]entity.Candidate, error)
}

// Embedder obtains a fixed-dimension vector for a short text. Implemented by
// internal/infra/adapter/embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summary is the structured result of one ProcessBatch pass.
type Summary struct {
	Articles   int // articles stamped processed
	Facts      int // new facts inserted
	Duplicates int // candidates rejected by the dedupe gate
	Dropped    int // candidates dropped for contract violations or embed failures
	Failed     int // articles left unstamped for the next pass
}

// Service drives the digestion stage.
type Service struct {
	ArticleRepo repository.ArticleRepository
	FactRepo    repository.FactRepository
	Extractor   Extractor
	Embedder    Embedder
	Config      Config
}

// NewService builds a digest Service with the given dependencies.
func NewService(articleRepo repository.ArticleRepository, factRepo repository.FactRepository, ex Extractor, em Embedder, cfg Config) *Service {
	return &Service{
		ArticleRepo: articleRepo,
		FactRepo:    factRepo,
		Extractor:   ex,
		Embedder:    em,
		Config:      cfg,
	}
}

// ProcessBatch digests up to Config.BatchSize articles with
// processed_at IS NULL. Articles are handled sequentially (external-call
// costs dominate; a single transaction window per article is preserved).
// The whole pass runs under Config.BatchBudget: when the budget runs out
// mid-batch the Service commits what it has and returns cleanly rather than
// be forcibly killed by the host orchestrator.
func (s *Service) ProcessBatch(ctx context.Context) (Summary, error) {
	articles, err := s.ArticleRepo.PendingForDigest(ctx, s.Config.BatchSize)
	if err != nil {
		return Summary{}, err
	}

	deadline := time.Now().Add(s.Config.BatchBudget)
	var summary Summary

	for _, art := range articles {
		if ctx.Err() != nil || time.Now().After(deadline) {
			slog.Info("digest: batch budget exhausted, committing partial batch",
				slog.Int("articles_done", summary.Articles),
				slog.Int("articles_pending", len(articles)-summary.Articles-summary.Failed))
			break
		}
		s.processArticle(ctx, art, &summary)
	}
	return summary, nil
}

// processArticle walks one article through the digestion state machine:
// UNPROCESSED -> FETCHED -> EXTRACTED -> EMBEDDED(i) -> PERSISTED(i) -> STAMPED.
func (s *Service) processArticle(ctx context.Context, art *entity.Article, summary *Summary) {
	text := ""
	if art.RawText != nil {
		text = strings.TrimSpace(*art.RawText)
	}
	if text == "" {
		// Nothing to extract from; stamping keeps the article from being
		// reselected forever.
		s.stamp(ctx, art, summary)
		return
	}

	candidates, err := s.extractWithRetry(ctx, text)
	if err != nil {
		slog.Warn("digest: extraction failed twice, stamping with zero facts",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
		s.stamp(ctx, art, summary)
		return
	}

	for _, cand := range s.sanitize(candidates, summary) {
		s.persistCandidate(ctx, art, cand, summary)
	}

	s.stamp(ctx, art, summary)
}

// extractWithRetry calls the Extractor, retrying exactly once on a hard
// failure. A contract-violation empty list is a valid response, not a
// failure.
func (s *Service) extractWithRetry(ctx context.Context, text string) ([]entity.Candidate, error) {
	candidates, err := s.Extractor.ExtractFacts(ctx, text)
	if err == nil {
		return candidates, nil
	}
	return s.Extractor.ExtractFacts(ctx, text)
}

// sanitize clamps the candidate list and each field, drops candidates with
// an empty subject, predicate or object, and drops those below the
// confidence floor, coercing out-of-range confidences into [0,1].
func (s *Service) sanitize(candidates []entity.Candidate, summary *Summary) []entity.Candidate {
	if len(candidates) > s.Config.MaxCandidates {
		summary.Dropped += len(candidates) - s.Config.MaxCandidates
		candidates = candidates[:s.Config.MaxCandidates]
	}

	out := make([]entity.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Subject = clamp(strings.TrimSpace(c.Subject), s.Config.MaxFieldLen)
		c.Predicate = clamp(strings.TrimSpace(c.Predicate), s.Config.MaxFieldLen)
		c.Object = clamp(strings.TrimSpace(c.Object), s.Config.MaxFieldLen)
		if c.Confidence < 0 {
			c.Confidence = 0
		}
		if c.Confidence > 1 {
			c.Confidence = 1
		}

		if c.Subject == "" || c.Predicate == "" || c.Object == "" || c.Confidence < s.Config.MinConfidence {
			summary.Dropped++
			metrics.RecordFactDisposition("dropped")
			continue
		}
		out = append(out, c)
	}
	return out
}

// persistCandidate embeds one candidate, runs the dedupe gate, and inserts
// the fact if no near-duplicate exists. An embed failure or wrong-dimension
// vector drops this candidate only; the rest of the article proceeds.
func (s *Service) persistCandidate(ctx context.Context, art *entity.Article, cand entity.Candidate, summary *Summary) {
	embedding, err := s.Embedder.Embed(ctx, cand.Statement())
	if err != nil {
		slog.Warn("digest: embed failed, dropping candidate",
			slog.Int64("article_id", art.ID),
			slog.String("statement", cand.Statement()),
			slog.Any("error", err))
		summary.Dropped++
		metrics.RecordFactDisposition("dropped")
		return
	}
	if err := entity.ValidateEmbeddingDim(embedding); err != nil {
		slog.Warn("digest: contract violation, dropping candidate",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
		summary.Dropped++
		metrics.RecordFactDisposition("dropped")
		return
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	nearest, err := s.FactRepo.FindNearest(queryCtx, embedding)
	cancel()
	if err != nil {
		slog.Warn("digest: dedupe query failed, dropping candidate",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
		summary.Dropped++
		return
	}
	if nearest != nil && nearest.CosineDistance < s.Config.DedupeTau {
		summary.Duplicates++
		metrics.RecordFactDisposition("duplicate")
		return
	}

	fact := &entity.Fact{
		ArticleID:  art.ID,
		Subject:    cand.Subject,
		Predicate:  cand.Predicate,
		Object:     cand.Object,
		Confidence: cand.Confidence,
		Embedding:  embedding,
		CreatedAt:  time.Now(),
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	_, inserted, err := s.FactRepo.Create(insertCtx, fact)
	cancel()
	if err != nil {
		// Transient insert failures lose one candidate, never the batch.
		slog.Warn("digest: fact insert failed",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
		summary.Dropped++
		return
	}
	if inserted {
		summary.Facts++
		metrics.RecordFactDisposition("inserted")
	} else {
		summary.Duplicates++
		metrics.RecordFactDisposition("duplicate")
	}
}

// stamp records processed_at. It runs with the cancellation stripped so a
// stage-level cancel arriving after the facts were persisted cannot leave
// the article unstamped and have it re-digested (and re-deduped) next pass.
func (s *Service) stamp(ctx context.Context, art *entity.Article, summary *Summary) {
	safeCtx := context.WithoutCancel(ctx)
	if err := s.ArticleRepo.StampProcessed(safeCtx, art.ID, time.Now()); err != nil {
		slog.Warn("digest: stamp failed, article will be retried",
			slog.Int64("article_id", art.ID), slog.Any("error", err))
		summary.Failed++
		return
	}
	summary.Articles++
}

func clamp(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
