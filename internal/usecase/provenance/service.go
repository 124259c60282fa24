// Package provenance implements the Provenance Hunter stage: for each
// unchecked fact it searches the Fact Store for an older near-identical
// assertion and the external Search Client for a prior citation, then
// records whether the fact is original and, if not, where it came from.
package provenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/infra/adapter/searchclient"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/repository"
)

// Summary is the structured result of one HuntOnce pass.
type Summary struct {
	Checked        int // facts stamped this pass
	Originals      int
	InternalPriors int // downgraded to a prior internal fact
	ExternalPriors int // downgraded to an external citation
	Skipped        int // left unstamped for the next pass (search failure)
}

// Service drives the provenance stage.
type Service struct {
	FactRepo    repository.FactRepository
	ArticleRepo repository.ArticleRepository
	Search      searchclient.SearchClient
	Config      Config
}

// NewService builds a provenance Service with the given dependencies.
func NewService(factRepo repository.FactRepository, articleRepo repository.ArticleRepository, search searchclient.SearchClient, cfg Config) *Service {
	return &Service{
		FactRepo:    factRepo,
		ArticleRepo: articleRepo,
		Search:      search,
		Config:      cfg,
	}
}

// HuntOnce checks up to Config.BatchSize facts with checked_at IS NULL.
// Re-running over the same fact set reaches the same decisions modulo
// later-arriving external evidence. A Search Client failure skips the
// external step without stamping, so the fact is retried next pass; skips
// are capped per pass so a dead search endpoint cannot pin the stage on
// the same head-of-queue facts forever.
func (s *Service) HuntOnce(ctx context.Context) (Summary, error) {
	facts, err := s.FactRepo.PendingForProvenance(ctx, s.Config.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("provenance: pending facts: %w", err)
	}

	var summary Summary
	for _, fact := range facts {
		if ctx.Err() != nil {
			break
		}
		if summary.Skipped >= s.Config.MaxSkips {
			break
		}
		s.huntOne(ctx, fact, &summary)
	}
	return summary, nil
}

func (s *Service) huntOne(ctx context.Context, fact *entity.Fact, summary *Summary) {
	factDate := s.factDate(ctx, fact)

	// Internal search: the earliest assertion within TAU_PROV of this one.
	queryCtx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	neighbors, err := s.FactRepo.FindWithinDistance(queryCtx, fact.Embedding, s.Config.Tau)
	cancel()
	if err != nil {
		slog.Warn("provenance: internal search failed, skipping fact",
			slog.Int64("fact_id", fact.ID), slog.Any("error", err))
		summary.Skipped++
		return
	}

	if prior := s.earliestPrior(fact, factDate, neighbors); prior != nil {
		provenanceID := prior.ID
		if s.stamp(ctx, fact, false, &provenanceID, summary) {
			summary.InternalPriors++
			metrics.RecordProvenanceDecision("internal_prior")
		}
		return
	}

	// External search: any citation published on or before the fact's date.
	external, err := s.externalPrior(ctx, fact, factDate)
	if err != nil {
		slog.Warn("provenance: external search failed, skipping fact",
			slog.Int64("fact_id", fact.ID), slog.Any("error", err))
		summary.Skipped++
		return
	}
	if external != nil {
		safeCtx := context.WithoutCancel(ctx)
		if _, err := s.ArticleRepo.UpsertReference(safeCtx, external.URL, external.PublishedDate); err != nil {
			slog.Warn("provenance: reference article upsert failed, skipping fact",
				slog.Int64("fact_id", fact.ID), slog.Any("error", err))
			summary.Skipped++
			return
		}
		if s.stamp(ctx, fact, false, nil, summary) {
			summary.ExternalPriors++
			metrics.RecordProvenanceDecision("external_prior")
		}
		return
	}

	if s.stamp(ctx, fact, true, nil, summary) {
		summary.Originals++
		metrics.RecordProvenanceDecision("original")
	}
}

// factDate resolves the candidate's reference date: the source article's
// published_date, falling back to the fact's own created_at when the
// article never carried one.
func (s *Service) factDate(ctx context.Context, fact *entity.Fact) time.Time {
	art, err := s.ArticleRepo.Get(ctx, fact.ArticleID)
	if err == nil && art != nil && art.PublishedAt != nil {
		return *art.PublishedAt
	}
	return fact.CreatedAt
}

// earliestPrior returns the strictly older neighbor with the earliest
// source-article date, or nil when none predates the candidate. Neighbors
// arrive ordered by article date ascending, so the first qualifying one wins.
// A neighbor already downgraded is never a valid provenance target; the
// store query filters those out, and this filter repeats the check so a
// stale read cannot chain onto a non-original fact.
func (s *Service) earliestPrior(fact *entity.Fact, factDate time.Time, neighbors []repository.NearestFact) *entity.Fact {
	for _, n := range neighbors {
		if n.Fact == nil || n.Fact.ID == fact.ID {
			continue
		}
		if n.Fact.IsOriginal != nil && !*n.Fact.IsOriginal {
			continue
		}
		priorDate := n.Fact.CreatedAt
		if n.ArticlePublished != nil {
			priorDate = *n.ArticlePublished
		}
		if priorDate.Before(factDate) {
			return n.Fact
		}
	}
	return nil
}

// externalPrior queries the Search Client for the statement and returns the
// earliest result dated on or before factDate, or nil when none qualifies.
func (s *Service) externalPrior(ctx context.Context, fact *entity.Fact, factDate time.Time) (*searchclient.Result, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.Config.SearchTimeout)
	defer cancel()

	results, err := s.Search.Search(searchCtx, fact.Statement())
	if err != nil {
		return nil, err
	}

	var earliest *searchclient.Result
	for i := range results {
		r := results[i]
		if r.PublishedDate.After(factDate) {
			continue
		}
		if earliest == nil || r.PublishedDate.Before(earliest.PublishedDate) {
			earliest = &r
		}
	}
	return earliest, nil
}

// stamp records the decision. checked_at is the only mutation a fact ever
// receives, so it is written with cancellation stripped: losing the stamp
// after the decision was made would just repeat the external search.
func (s *Service) stamp(ctx context.Context, fact *entity.Fact, isOriginal bool, provenanceID *int64, summary *Summary) bool {
	safeCtx := context.WithoutCancel(ctx)
	if err := s.FactRepo.StampChecked(safeCtx, fact.ID, time.Now(), isOriginal, provenanceID); err != nil {
		slog.Warn("provenance: stamp failed, fact will be retried",
			slog.Int64("fact_id", fact.ID), slog.Any("error", err))
		summary.Skipped++
		return false
	}
	summary.Checked++
	return true
}
