package extractor

import (
	"encoding/json"
	"log/slog"
	"strings"

	"catchup-feed/internal/domain/entity"
)

type rawFact struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

type extractionResponse struct {
	Facts []rawFact `json:"facts"`
}

// parseFacts decodes the model's raw text response into candidates. Per the
// Extractor contract, any parse failure is a contract violation, not an
// error: the Digester is expected to treat it the same as "no facts found"
// and continue to the next article.
func parseFacts(raw string) []entity.Candidate {
	raw = stripCodeFence(raw)

	var resp extractionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		slog.Warn("extractor: contract violation, response was not valid JSON",
			slog.String("error", err.Error()))
		return nil
	}

	candidates := make([]entity.Candidate, 0, len(resp.Facts))
	for _, f := range resp.Facts {
		candidates = append(candidates, entity.Candidate{
			Subject:    f.Subject,
			Predicate:  f.Predicate,
			Object:     f.Object,
			Confidence: f.Confidence,
		})
	}
	return candidates
}

// stripCodeFence removes a ```json ... ``` or ``` ... ``` wrapper if the
// model added one despite being told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateToBytes(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	return text[:maxBytes]
}
