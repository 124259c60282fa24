package digest_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/repository"
	"catchup-feed/internal/usecase/digest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type stubArticleRepo struct {
	pending []*entity.Article
	stamped map[int64]time.Time
}

func (r *stubArticleRepo) Get(context.Context, int64) (*entity.Article, error)       { return nil, nil }
func (r *stubArticleRepo) GetByURL(context.Context, string) (*entity.Article, error) { return nil, nil }
func (r *stubArticleRepo) Create(context.Context, *entity.Article) (int64, bool, error) {
	return 0, false, nil
}
func (r *stubArticleRepo) UpdateRawText(context.Context, int64, string) error { return nil }
func (r *stubArticleRepo) PendingForHydrate(context.Context, int) ([]*entity.Article, error) {
	return nil, nil
}
func (r *stubArticleRepo) UpsertReference(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}
func (r *stubArticleRepo) PublishCandidates(context.Context) ([]*entity.Article, error) {
	return nil, nil
}
func (r *stubArticleRepo) ExistsByURLBatch(context.Context, []string) (map[string]bool, error) {
	return nil, nil
}

func (r *stubArticleRepo) PendingForDigest(_ context.Context, limit int) ([]*entity.Article, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *stubArticleRepo) StampProcessed(_ context.Context, articleID int64, at time.Time) error {
	if r.stamped == nil {
		r.stamped = make(map[int64]time.Time)
	}
	r.stamped[articleID] = at
	return nil
}

type stubFactRepo struct {
	facts     []*entity.Fact
	nextID    int64
	nearestFn func(embedding []float32) *repository.NearestFact
}

func (r *stubFactRepo) Get(context.Context, int64) (*entity.Fact, error) { return nil, nil }
func (r *stubFactRepo) FindWithinDistance(context.Context, []float32, float64) ([]repository.NearestFact, error) {
	return nil, nil
}
func (r *stubFactRepo) PendingForProvenance(context.Context, int) ([]*entity.Fact, error) {
	return nil, nil
}
func (r *stubFactRepo) StampChecked(context.Context, int64, time.Time, bool, *int64) error {
	return nil
}
func (r *stubFactRepo) PublishCandidates(context.Context) ([]*entity.Fact, error) { return nil, nil }

func (r *stubFactRepo) FindNearest(_ context.Context, embedding []float32) (*repository.NearestFact, error) {
	if r.nearestFn != nil {
		return r.nearestFn(embedding), nil
	}
	return nil, nil
}

func (r *stubFactRepo) Create(_ context.Context, fact *entity.Fact) (int64, bool, error) {
	r.nextID++
	fact.ID = r.nextID
	r.facts = append(r.facts, fact)
	return fact.ID, true, nil
}

type stubExtractor struct {
	candidates []entity.Candidate
	err        error
	failures   int // number of leading calls that error before succeeding
	calls      int
}

func (e *stubExtractor) ExtractFacts(context.Context, string) ([]entity.Candidate, error) {
	e.calls++
	if e.failures >= e.calls {
		return nil, errors.New("extractor transient failure")
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.candidates, nil
}

type stubEmbedder struct {
	vector []float32
	err    error
	delay  time.Duration
}

func (e *stubEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func unitVector(seed int) []float32 {
	v := make([]float32, entity.EmbeddingDim)
	for i := range v {
		v[i] = float32(math.Sin(float64(seed + i)))
	}
	return v
}

func testConfig() digest.Config {
	return digest.Config{
		BatchSize:     10,
		MaxCandidates: 25,
		MaxFieldLen:   256,
		MinConfidence: 0.4,
		DedupeTau:     0.05,
		QueryTimeout:  time.Second,
		BatchBudget:   time.Minute,
	}
}

func TestProcessBatch_InsertsFactsAndStamps(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 1, URL: "https://example.com/a", RawText: strPtr("Paris is the capital of France.")},
	}}
	factRepo := &stubFactRepo{}
	ex := &stubExtractor{candidates: []entity.Candidate{
		{Subject: "Paris", Predicate: "is capital of", Object: "France", Confidence: 0.9},
	}}
	em := &stubEmbedder{vector: unitVector(1)}

	svc := digest.NewService(articleRepo, factRepo, ex, em, testConfig())
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Articles)
	assert.Equal(t, 1, summary.Facts)
	require.Len(t, factRepo.facts, 1)
	assert.Equal(t, "Paris is capital of France", factRepo.facts[0].Statement())
	assert.Contains(t, articleRepo.stamped, int64(1))
}

func TestProcessBatch_EmptyTextStampsWithZeroFacts(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 2, URL: "https://example.com/empty", RawText: strPtr("   ")},
		{ID: 3, URL: "https://example.com/nil"},
	}}
	factRepo := &stubFactRepo{}

	svc := digest.NewService(articleRepo, factRepo, &stubExtractor{}, &stubEmbedder{}, testConfig())
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Articles)
	assert.Zero(t, summary.Facts)
	assert.Contains(t, articleRepo.stamped, int64(2))
	assert.Contains(t, articleRepo.stamped, int64(3))
}

func TestProcessBatch_DedupeGateRejectsNearDuplicate(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 4, URL: "https://example.com/b", RawText: strPtr("The capital of France is Paris.")},
	}}
	factRepo := &stubFactRepo{
		nearestFn: func([]float32) *repository.NearestFact {
			return &repository.NearestFact{
				Fact:           &entity.Fact{ID: 99, Subject: "Paris"},
				CosineDistance: 0.01,
			}
		},
	}
	ex := &stubExtractor{candidates: []entity.Candidate{
		{Subject: "Paris", Predicate: "is capital of", Object: "France", Confidence: 0.85},
	}}

	svc := digest.NewService(articleRepo, factRepo, ex, &stubEmbedder{vector: unitVector(2)}, testConfig())
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Articles)
	assert.Zero(t, summary.Facts)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Empty(t, factRepo.facts)
}

func TestProcessBatch_SanitizeDropsLowConfidenceAndEmptyFields(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 5, URL: "https://example.com/c", RawText: strPtr("some text")},
	}}
	factRepo := &stubFactRepo{}
	ex := &stubExtractor{candidates: []entity.Candidate{
		{Subject: "", Predicate: "p", Object: "o", Confidence: 0.9},
		{Subject: "s", Predicate: "p", Object: "o", Confidence: 0.39},
		{Subject: "keep", Predicate: "is", Object: "kept", Confidence: 0.5},
	}}

	svc := digest.NewService(articleRepo, factRepo, ex, &stubEmbedder{vector: unitVector(3)}, testConfig())
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Facts)
	assert.Equal(t, 2, summary.Dropped)
	require.Len(t, factRepo.facts, 1)
	assert.Equal(t, "keep", factRepo.facts[0].Subject)
}

func TestProcessBatch_WrongDimensionEmbeddingDropsCandidateOnly(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 6, URL: "https://example.com/d", RawText: strPtr("some text")},
	}}
	factRepo := &stubFactRepo{}
	ex := &stubExtractor{candidates: []entity.Candidate{
		{Subject: "s", Predicate: "p", Object: "o", Confidence: 0.8},
	}}
	em := &stubEmbedder{vector: make([]float32, 128)} // contract violation

	svc := digest.NewService(articleRepo, factRepo, ex, em, testConfig())
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Articles)
	assert.Zero(t, summary.Facts)
	assert.Equal(t, 1, summary.Dropped)
	assert.Contains(t, articleRepo.stamped, int64(6))
}

func TestProcessBatch_ExtractRetriedOnceThenStampedZeroFacts(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 7, URL: "https://example.com/e", RawText: strPtr("some text")},
	}}
	factRepo := &stubFactRepo{}
	ex := &stubExtractor{failures: 2} // both the call and its retry fail

	svc := digest.NewService(articleRepo, factRepo, ex, &stubEmbedder{vector: unitVector(4)}, testConfig())
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, ex.calls)
	assert.Equal(t, 1, summary.Articles)
	assert.Zero(t, summary.Facts)
	assert.Contains(t, articleRepo.stamped, int64(7))
}

func TestProcessBatch_ExtractSucceedsOnRetry(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 8, URL: "https://example.com/f", RawText: strPtr("some text")},
	}}
	factRepo := &stubFactRepo{}
	ex := &stubExtractor{
		failures:   1,
		candidates: []entity.Candidate{{Subject: "s", Predicate: "p", Object: "o", Confidence: 0.7}},
	}

	svc := digest.NewService(articleRepo, factRepo, ex, &stubEmbedder{vector: unitVector(5)}, testConfig())
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, ex.calls)
	assert.Equal(t, 1, summary.Facts)
}

func TestProcessBatch_SlowEmbedderStillStampsWithinBudget(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 9, URL: "https://example.com/slow", RawText: strPtr("some text")},
	}}
	factRepo := &stubFactRepo{}
	ex := &stubExtractor{candidates: []entity.Candidate{
		{Subject: "s", Predicate: "p", Object: "o", Confidence: 0.8},
	}}
	// Embedder that outlives its caller's deadline: digesting must yield zero
	// facts but still stamp the article and return promptly.
	em := &stubEmbedder{vector: unitVector(6), delay: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	svc := digest.NewService(articleRepo, factRepo, ex, em, testConfig())
	start := time.Now()
	summary, err := svc.ProcessBatch(ctx)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, summary.Facts)
	assert.Equal(t, 1, summary.Articles)
	assert.Contains(t, articleRepo.stamped, int64(9))
}

func TestProcessBatch_BatchBudgetCommitsPartialBatch(t *testing.T) {
	articleRepo := &stubArticleRepo{pending: []*entity.Article{
		{ID: 10, URL: "https://example.com/g", RawText: strPtr("text one")},
		{ID: 11, URL: "https://example.com/h", RawText: strPtr("text two")},
	}}
	factRepo := &stubFactRepo{}
	ex := &stubExtractor{candidates: []entity.Candidate{
		{Subject: "s", Predicate: "p", Object: "o", Confidence: 0.8},
	}}
	em := &stubEmbedder{vector: unitVector(7), delay: 30 * time.Millisecond}

	cfg := testConfig()
	cfg.BatchBudget = 20 * time.Millisecond

	svc := digest.NewService(articleRepo, factRepo, ex, em, cfg)
	summary, err := svc.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Articles)
	assert.NotContains(t, articleRepo.stamped, int64(11))
}
