// Package fixtures provides reusable test data generators for integration tests.
package fixtures

import (
	"math"
	"time"

	"catchup-feed/internal/domain/entity"
)

// FactOption is a functional option for customizing test facts.
type FactOption func(*entity.Fact)

// NewTestFact creates a valid Fact with sensible defaults.
// Use functional options to customize the fact for specific test cases.
//
// Example:
//
//	fact := fixtures.NewTestFact()
//	fact := fixtures.NewTestFact(fixtures.WithArticleID(100), fixtures.WithChecked(true))
func NewTestFact(opts ...FactOption) *entity.Fact {
	f := &entity.Fact{
		ID:         1,
		ArticleID:  1,
		Subject:    "Paris",
		Predicate:  "is capital of",
		Object:     "France",
		Confidence: 0.9,
		Embedding:  GenerateTestVector(entity.EmbeddingDim, 1),
		CreatedAt:  time.Now(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// WithFactID sets the ID of the fact.
func WithFactID(id int64) FactOption {
	return func(f *entity.Fact) {
		f.ID = id
	}
}

// WithArticleID sets the ArticleID of the fact.
func WithArticleID(id int64) FactOption {
	return func(f *entity.Fact) {
		f.ArticleID = id
	}
}

// WithTriple sets the subject, predicate, and object of the fact.
func WithTriple(subject, predicate, object string) FactOption {
	return func(f *entity.Fact) {
		f.Subject = subject
		f.Predicate = predicate
		f.Object = object
	}
}

// WithConfidence sets the confidence of the fact.
func WithConfidence(c float64) FactOption {
	return func(f *entity.Fact) {
		f.Confidence = c
	}
}

// WithEmbeddingSeed regenerates the embedding from the given seed, so two
// facts built from different seeds are guaranteed not to be near-duplicates.
func WithEmbeddingSeed(seed int) FactOption {
	return func(f *entity.Fact) {
		f.Embedding = GenerateTestVector(entity.EmbeddingDim, seed)
	}
}

// WithChecked stamps the fact as checked with the given originality verdict.
func WithChecked(isOriginal bool) FactOption {
	return func(f *entity.Fact) {
		now := time.Now()
		f.CheckedAt = &now
		f.IsOriginal = &isOriginal
	}
}

// GenerateTestVector produces a deterministic unit-ish vector of the given
// dimension, varying with seed.
func GenerateTestVector(dim, seed int) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		x := math.Sin(float64(seed)*0.7 + float64(i)*0.13)
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
