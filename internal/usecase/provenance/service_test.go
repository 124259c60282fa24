package provenance_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/infra/adapter/searchclient"
	"catchup-feed/internal/repository"
	"catchup-feed/internal/usecase/provenance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkedRecord struct {
	IsOriginal   bool
	ProvenanceID *int64
}

type stubFactRepo struct {
	pending   []*entity.Fact
	neighbors map[int64][]repository.NearestFact
	checked   map[int64]checkedRecord
	findErr   error
}

func (r *stubFactRepo) Create(context.Context, *entity.Fact) (int64, bool, error) {
	return 0, false, nil
}
func (r *stubFactRepo) Get(context.Context, int64) (*entity.Fact, error) { return nil, nil }
func (r *stubFactRepo) FindNearest(context.Context, []float32) (*repository.NearestFact, error) {
	return nil, nil
}
func (r *stubFactRepo) PublishCandidates(context.Context) ([]*entity.Fact, error) { return nil, nil }

func (r *stubFactRepo) PendingForProvenance(_ context.Context, limit int) ([]*entity.Fact, error) {
	var out []*entity.Fact
	for _, f := range r.pending {
		if _, done := r.checked[f.ID]; done {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *stubFactRepo) FindWithinDistance(_ context.Context, embedding []float32, _ float64) ([]repository.NearestFact, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for id, ns := range r.neighbors {
		for _, f := range r.pending {
			if f.ID == id && sameVector(f.Embedding, embedding) {
				return ns, nil
			}
		}
	}
	return nil, nil
}

func (r *stubFactRepo) StampChecked(_ context.Context, factID int64, _ time.Time, isOriginal bool, provenanceID *int64) error {
	if r.checked == nil {
		r.checked = make(map[int64]checkedRecord)
	}
	r.checked[factID] = checkedRecord{IsOriginal: isOriginal, ProvenanceID: provenanceID}
	return nil
}

func sameVector(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type stubArticleRepo struct {
	articles   map[int64]*entity.Article
	references map[string]time.Time
	nextRefID  int64
}

func (r *stubArticleRepo) GetByURL(context.Context, string) (*entity.Article, error) { return nil, nil }
func (r *stubArticleRepo) Create(context.Context, *entity.Article) (int64, bool, error) {
	return 0, false, nil
}
func (r *stubArticleRepo) UpdateRawText(context.Context, int64, string) error     { return nil }
func (r *stubArticleRepo) StampProcessed(context.Context, int64, time.Time) error { return nil }
func (r *stubArticleRepo) PendingForHydrate(context.Context, int) ([]*entity.Article, error) {
	return nil, nil
}
func (r *stubArticleRepo) PendingForDigest(context.Context, int) ([]*entity.Article, error) {
	return nil, nil
}
func (r *stubArticleRepo) PublishCandidates(context.Context) ([]*entity.Article, error) {
	return nil, nil
}
func (r *stubArticleRepo) ExistsByURLBatch(context.Context, []string) (map[string]bool, error) {
	return nil, nil
}

func (r *stubArticleRepo) Get(_ context.Context, id int64) (*entity.Article, error) {
	if a, ok := r.articles[id]; ok {
		return a, nil
	}
	return nil, entity.ErrNotFound
}

func (r *stubArticleRepo) UpsertReference(_ context.Context, url string, publishedAt time.Time) (int64, error) {
	if r.references == nil {
		r.references = make(map[string]time.Time)
	}
	r.references[url] = publishedAt
	r.nextRefID++
	return 1000 + r.nextRefID, nil
}

type stubSearch struct {
	results []searchclient.Result
	err     error
	calls   int
}

func (s *stubSearch) Search(context.Context, string) ([]searchclient.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func embeddingFor(seed int) []float32 {
	v := make([]float32, entity.EmbeddingDim)
	for i := range v {
		v[i] = float32(math.Cos(float64(seed + i)))
	}
	return v
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func testConfig() provenance.Config {
	return provenance.Config{
		BatchSize:     20,
		Tau:           0.15,
		MaxSkips:      5,
		QueryTimeout:  time.Second,
		SearchTimeout: time.Second,
	}
}

func TestHuntOnce_InternalPriorDowngradesFact(t *testing.T) {
	older := &entity.Fact{ID: 1, ArticleID: 10, Embedding: embeddingFor(1), CreatedAt: date("2024-01-01")}
	newer := &entity.Fact{ID: 2, ArticleID: 20, Embedding: embeddingFor(1), CreatedAt: date("2024-06-01")}

	factRepo := &stubFactRepo{
		pending: []*entity.Fact{newer},
		neighbors: map[int64][]repository.NearestFact{
			2: {{Fact: older, ArticlePublished: datePtr("2024-01-01"), CosineDistance: 0.02}},
		},
	}
	articleRepo := &stubArticleRepo{articles: map[int64]*entity.Article{
		20: {ID: 20, PublishedAt: datePtr("2024-06-01")},
	}}
	search := &stubSearch{}

	svc := provenance.NewService(factRepo, articleRepo, search, testConfig())
	summary, err := svc.HuntOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.InternalPriors)

	rec, ok := factRepo.checked[2]
	require.True(t, ok)
	assert.False(t, rec.IsOriginal)
	require.NotNil(t, rec.ProvenanceID)
	assert.Equal(t, int64(1), *rec.ProvenanceID)
	assert.Zero(t, search.calls, "internal prior should short-circuit the external search")
}

func TestHuntOnce_ExternalPriorRecordsReferenceArticle(t *testing.T) {
	fact := &entity.Fact{ID: 3, ArticleID: 30, Embedding: embeddingFor(3), CreatedAt: date("2024-06-01")}
	factRepo := &stubFactRepo{pending: []*entity.Fact{fact}}
	articleRepo := &stubArticleRepo{articles: map[int64]*entity.Article{
		30: {ID: 30, PublishedAt: datePtr("2024-06-01")},
	}}
	search := &stubSearch{results: []searchclient.Result{
		{URL: "https://elsewhere.example.com/first", PublishedDate: date("2024-03-15")},
		{URL: "https://elsewhere.example.com/later", PublishedDate: date("2024-05-01")},
	}}

	svc := provenance.NewService(factRepo, articleRepo, search, testConfig())
	summary, err := svc.HuntOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExternalPriors)

	rec := factRepo.checked[3]
	assert.False(t, rec.IsOriginal)
	assert.Nil(t, rec.ProvenanceID)
	assert.Contains(t, articleRepo.references, "https://elsewhere.example.com/first",
		"the earliest qualifying citation becomes the reference article")
}

func TestHuntOnce_NoPriorMarksOriginal(t *testing.T) {
	fact := &entity.Fact{ID: 4, ArticleID: 40, Embedding: embeddingFor(4), CreatedAt: date("2024-06-01")}
	factRepo := &stubFactRepo{pending: []*entity.Fact{fact}}
	articleRepo := &stubArticleRepo{articles: map[int64]*entity.Article{
		40: {ID: 40, PublishedAt: datePtr("2024-06-01")},
	}}
	// Results dated after the fact do not qualify as provenance.
	search := &stubSearch{results: []searchclient.Result{
		{URL: "https://elsewhere.example.com/echo", PublishedDate: date("2024-07-01")},
	}}

	svc := provenance.NewService(factRepo, articleRepo, search, testConfig())
	summary, err := svc.HuntOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Originals)
	rec := factRepo.checked[4]
	assert.True(t, rec.IsOriginal)
	assert.Nil(t, rec.ProvenanceID)
}

func TestHuntOnce_SearchFailureLeavesFactUnstamped(t *testing.T) {
	fact := &entity.Fact{ID: 5, ArticleID: 50, Embedding: embeddingFor(5), CreatedAt: date("2024-06-01")}
	factRepo := &stubFactRepo{pending: []*entity.Fact{fact}}
	articleRepo := &stubArticleRepo{articles: map[int64]*entity.Article{50: {ID: 50}}}
	search := &stubSearch{err: errors.New("search endpoint down")}

	svc := provenance.NewService(factRepo, articleRepo, search, testConfig())
	summary, err := svc.HuntOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Checked)
	assert.NotContains(t, factRepo.checked, int64(5))
}

func TestHuntOnce_RerunIsIdempotent(t *testing.T) {
	fact := &entity.Fact{ID: 6, ArticleID: 60, Embedding: embeddingFor(6), CreatedAt: date("2024-06-01")}
	factRepo := &stubFactRepo{pending: []*entity.Fact{fact}}
	articleRepo := &stubArticleRepo{articles: map[int64]*entity.Article{
		60: {ID: 60, PublishedAt: datePtr("2024-06-01")},
	}}
	search := &stubSearch{}

	svc := provenance.NewService(factRepo, articleRepo, search, testConfig())

	first, err := svc.HuntOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Checked)

	second, err := svc.HuntOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Checked, "an already-stamped fact is never reselected")
}

func TestHuntOnce_DowngradedPriorIsNeverAProvenanceTarget(t *testing.T) {
	rootID := int64(1)
	isOriginalTrue := true
	isOriginalFalse := false
	root := &entity.Fact{
		ID: 1, ArticleID: 10, Embedding: embeddingFor(7),
		CreatedAt: date("2024-01-01"), IsOriginal: &isOriginalTrue,
	}
	middle := &entity.Fact{
		ID: 2, ArticleID: 20, Embedding: embeddingFor(7),
		CreatedAt: date("2024-02-01"), IsOriginal: &isOriginalFalse, ProvenanceID: &rootID,
	}
	newest := &entity.Fact{ID: 3, ArticleID: 30, Embedding: embeddingFor(7), CreatedAt: date("2024-06-01")}

	// The store query excludes downgraded facts, but a stale read may still
	// surface one; the service must step over it to the original root.
	factRepo := &stubFactRepo{
		pending: []*entity.Fact{newest},
		neighbors: map[int64][]repository.NearestFact{
			3: {
				{Fact: root, ArticlePublished: datePtr("2024-01-01"), CosineDistance: 0.04},
				{Fact: middle, ArticlePublished: datePtr("2024-02-01"), CosineDistance: 0.05},
			},
		},
	}
	articleRepo := &stubArticleRepo{articles: map[int64]*entity.Article{
		30: {ID: 30, PublishedAt: datePtr("2024-06-01")},
	}}

	svc := provenance.NewService(factRepo, articleRepo, &stubSearch{}, testConfig())
	_, err := svc.HuntOnce(context.Background())

	require.NoError(t, err)
	rec := factRepo.checked[3]
	assert.False(t, rec.IsOriginal)
	require.NotNil(t, rec.ProvenanceID)
	assert.Equal(t, rootID, *rec.ProvenanceID)
}

func TestHuntOnce_ExternallyDowngradedPriorIsSkipped(t *testing.T) {
	// A prior downgraded against an external citation carries
	// is_original=false with provenance_id=NULL. Chaining onto it would stamp
	// a provenance_id pointing at a non-original fact; the hunter must treat
	// it as if it were not there at all.
	isOriginalFalse := false
	externalPrior := &entity.Fact{
		ID: 4, ArticleID: 40, Embedding: embeddingFor(8),
		CreatedAt: date("2024-01-01"), IsOriginal: &isOriginalFalse, // ProvenanceID nil
	}
	newest := &entity.Fact{ID: 5, ArticleID: 50, Embedding: embeddingFor(8), CreatedAt: date("2024-06-01")}

	factRepo := &stubFactRepo{
		pending: []*entity.Fact{newest},
		neighbors: map[int64][]repository.NearestFact{
			5: {{Fact: externalPrior, ArticlePublished: datePtr("2024-01-01"), CosineDistance: 0.03}},
		},
	}
	articleRepo := &stubArticleRepo{articles: map[int64]*entity.Article{
		50: {ID: 50, PublishedAt: datePtr("2024-06-01")},
	}}

	svc := provenance.NewService(factRepo, articleRepo, &stubSearch{}, testConfig())
	summary, err := svc.HuntOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Originals)
	rec := factRepo.checked[5]
	assert.True(t, rec.IsOriginal, "with no valid prior the fact is original")
	assert.Nil(t, rec.ProvenanceID)
}
