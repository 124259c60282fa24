package entity

import (
	"fmt"
	"time"
)

// EmbeddingDim is the fixed dimensionality of every statement embedding in the pipeline.
const EmbeddingDim = 384

// Fact is an atomic (subject, predicate, object) assertion extracted from an Article,
// carrying a confidence score and a semantic embedding. Facts are created once by the
// Digester and mutated exactly once more, by the Provenance Hunter; they are never deleted.
type Fact struct {
	ID           int64
	ArticleID    int64
	Subject      string
	Predicate    string
	Object       string
	Confidence   float64
	Embedding    []float32
	CreatedAt    time.Time
	CheckedAt    *time.Time
	IsOriginal   *bool
	ProvenanceID *int64
}

// Statement returns the canonical string form of the fact, used for embedding and display.
func (f *Fact) Statement() string {
	return fmt.Sprintf("%s %s %s", f.Subject, f.Predicate, f.Object)
}

// Checked reports whether the Provenance Hunter has already stamped this fact.
func (f *Fact) Checked() bool {
	return f.CheckedAt != nil
}

// ValidateEmbeddingDim returns a *ValidationError if embedding is not exactly EmbeddingDim long.
func ValidateEmbeddingDim(embedding []float32) error {
	if len(embedding) != EmbeddingDim {
		return &ValidationError{
			Field:   "embedding",
			Message: fmt.Sprintf("expected dimension %d, got %d", EmbeddingDim, len(embedding)),
		}
	}
	return nil
}

// Candidate is an unpersisted (subject, predicate, object, confidence) triple produced by
// the Extractor, prior to dedupe-gating and embedding.
type Candidate struct {
	Subject    string
	Predicate  string
	Object     string
	Confidence float64
}

// Statement mirrors Fact.Statement for a not-yet-persisted candidate.
func (c *Candidate) Statement() string {
	return fmt.Sprintf("%s %s %s", c.Subject, c.Predicate, c.Object)
}
