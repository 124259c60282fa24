// Package graph adapts the Fact Store's published subset onto a Neo4j graph,
// and builds the Cypher the Retrieval Engine's hybrid query needs.
package graph

import (
	"strings"

	"catchup-feed/internal/repository"
)

// BuildAnswerQuery returns the Cypher statement and its parameter map for q.
// Cosine similarity is computed natively via reduce() over the embedding
// arrays rather than a vector-index plugin, per the Graph Store's documented
// degrade-gracefully requirement: any store without a native vector index
// still answers hybrid queries correctly, just without an index-accelerated
// path. Parameters are never string-concatenated into the query.
func BuildAnswerQuery(q repository.RetrievalQuery) (string, map[string]any) {
	variants := make([]string, len(q.Variants))
	for i, v := range q.Variants {
		variants[i] = strings.ToLower(v)
	}

	params := map[string]any{
		"variants": variants,
		"limit":    q.ResultLimit,
	}

	var b strings.Builder
	b.WriteString("MATCH (f:Fact)\n")

	switch q.Strategy {
	case repository.StrategyKeywordOnly:
		b.WriteString(keywordScoreClause())
		b.WriteString("WITH f, keywordScore AS hybrid\n")
	case repository.StrategyHybrid, repository.StrategyVectorOnly:
		params["embedding"] = f32ToF64(q.Embedding)
		params["weightKW"] = q.WeightKW
		params["weightVec"] = q.WeightVec
		b.WriteString(cosineClause())
		if q.Strategy == repository.StrategyVectorOnly {
			b.WriteString("WITH f, cosine AS hybrid\n")
		} else {
			b.WriteString(keywordScoreClause())
			b.WriteString("WITH f, ($weightKW * keywordScore + $weightVec * cosine) AS hybrid\n")
		}
	}

	b.WriteString(`WITH f, hybrid,
  CASE WHEN f.confidence > 0.8 THEN 1.2 ELSE 1.0 END AS confBoost,
  CASE WHEN f.confidence > 0.9 THEN 1.5 ELSE 1.0 END AS highConfBoost
WITH f, hybrid * f.confidence * confBoost * highConfBoost AS finalScore
ORDER BY finalScore DESC
LIMIT $limit
RETURN f.id AS id, f.text AS statement, f.subject AS subject, f.predicate AS predicate,
       f.object AS object, f.confidence AS confidence, finalScore AS relevance`)

	return b.String(), params
}

// cosineClause computes dot(fe,qe)/(||fe||*||qe||), treating either zero
// magnitude as cosine=0. It tolerates a query embedding of a different
// length than the stored 384-dim fact embedding (the Retrieval Engine's
// vector-only fallback for a malformed Embedder response) by reducing over
// the shorter of the two.
func cosineClause() string {
	return `WITH f, size(f.embedding) AS flen, size($embedding) AS qlen
WITH f, CASE WHEN flen < qlen THEN flen ELSE qlen END AS n
WITH f,
  reduce(dot = 0.0, i IN range(0, n - 1) | dot + f.embedding[i] * $embedding[i]) AS dot,
  sqrt(reduce(s = 0.0, x IN f.embedding | s + x * x)) AS fnorm,
  sqrt(reduce(s = 0.0, x IN $embedding | s + x * x)) AS qnorm
WITH f, CASE WHEN fnorm = 0 OR qnorm = 0 THEN 0.0 ELSE dot / (fnorm * qnorm) END AS cosine
`
}

// keywordScoreClause scores confidence(f) if any lowercased variant is a
// substring of the fact's text or any of its (subject,predicate,object)
// components, else 0.
func keywordScoreClause() string {
	return `WITH f, CASE WHEN any(v IN $variants WHERE
    toLower(f.text) CONTAINS v OR toLower(f.subject) CONTAINS v OR
    toLower(f.predicate) CONTAINS v OR toLower(f.object) CONTAINS v)
  THEN f.confidence ELSE 0.0 END AS keywordScore
`
}

func f32ToF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
