package entity

// Assertion represents the projection-only graph edge (Article)-[:ASSERTED]->(Fact).
// It has no table of its own in the Fact Store; the Publisher derives it from
// Fact.ArticleID for original facts, or from a fact's reference-article linkage
// for non-originals.
type Assertion struct {
	FactID       int64
	ArticleID    int64
	ProvenanceID *int64
	IsOriginal   bool
}
