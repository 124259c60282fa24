package query

import (
	"time"

	"catchup-feed/internal/domain/entity"
)

// NaturalRequest is the POST /query/natural request body.
type NaturalRequest struct {
	Query string `json:"query"`
}

// ResultDTO is one ranked fact in the natural-query response.
type ResultDTO struct {
	ID         int64   `json:"id"`
	Statement  string  `json:"statement"`
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	Relevance  float64 `json:"relevance"`
}

// NaturalResponse is the POST /query/natural success response.
type NaturalResponse struct {
	Success   bool        `json:"success"`
	Query     string      `json:"query"`
	Analysis  string      `json:"analysis,omitempty"`
	Results   []ResultDTO `json:"results"`
	Count     int         `json:"count"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the failure shape for request-scoped errors.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FactGraphResponse is the GET /fact_graph/{id} response.
type FactGraphResponse struct {
	Elements []entity.GraphElement `json:"elements"`
}

func toResultDTOs(facts []entity.RetrievedFact) []ResultDTO {
	out := make([]ResultDTO, 0, len(facts))
	for _, f := range facts {
		out = append(out, ResultDTO{
			ID:         f.ID,
			Statement:  f.Statement,
			Subject:    f.Subject,
			Predicate:  f.Predicate,
			Object:     f.Object,
			Confidence: f.Confidence,
			Relevance:  f.Relevance,
		})
	}
	return out
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
