package publish

import (
	"bytes"
	"encoding/json"
	"io"

	"catchup-feed/internal/domain/entity"
)

// Payload is the Publisher -> Graph Store transport document: every fact
// carries its full embedding so the Retrieval Engine can score cosine
// similarity natively in the graph.
type Payload struct {
	Facts      []factPayload      `json:"facts"`
	Articles   []articlePayload   `json:"articles"`
	Assertions []assertionPayload `json:"assertions"`
}

type factPayload struct {
	ID         int64     `json:"id"`
	Subject    string    `json:"subject"`
	Predicate  string    `json:"predicate"`
	Object     string    `json:"object"`
	Confidence float64   `json:"confidence"`
	Embedding  []float64 `json:"embedding"`
}

type articlePayload struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	PublishedDate *string `json:"published_date"`
	IsReference   bool    `json:"is_reference"`
}

type assertionPayload struct {
	ID           int64  `json:"id"`
	ArticleID    int64  `json:"article_id"`
	ProvenanceID *int64 `json:"provenance_id"`
	IsOriginal   bool   `json:"is_original"`
}

func buildPayload(articles []entity.ArticleNode, facts []entity.FactNode, assertions []entity.AssertionEdge) Payload {
	p := Payload{
		Facts:      make([]factPayload, 0, len(facts)),
		Articles:   make([]articlePayload, 0, len(articles)),
		Assertions: make([]assertionPayload, 0, len(assertions)),
	}
	for _, f := range facts {
		embedding := make([]float64, len(f.Embedding))
		for i, x := range f.Embedding {
			embedding[i] = float64(x)
		}
		p.Facts = append(p.Facts, factPayload{
			ID:         f.ID,
			Subject:    f.Subject,
			Predicate:  f.Predicate,
			Object:     f.Object,
			Confidence: f.Confidence,
			Embedding:  embedding,
		})
	}
	for _, a := range articles {
		p.Articles = append(p.Articles, articlePayload{
			ID:            a.ID,
			Title:         a.Title,
			URL:           a.URL,
			PublishedDate: a.PublishedDate,
			IsReference:   a.IsReference,
		})
	}
	for _, a := range assertions {
		p.Assertions = append(p.Assertions, assertionPayload{
			ID:           a.ID,
			ArticleID:    a.ArticleID,
			ProvenanceID: a.ProvenanceID,
			IsOriginal:   a.IsOriginal,
		})
	}
	return p
}

// Encode writes the payload as UTF-8 JSON, newline-terminated, with no
// embedded NULs.
func (p Payload) Encode(w io.Writer) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	data = bytes.ReplaceAll(data, []byte{0}, nil)
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
