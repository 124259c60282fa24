// Package query exposes the Retrieval Engine over HTTP: the natural-language
// query endpoint and the fact-neighborhood view the UI's graph pane consumes.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/handler/http/respond"
	"catchup-feed/internal/repository"
	"catchup-feed/internal/usecase/retrieval"
)

// maxRequestBodyBytes bounds the natural-query request body. The query
// itself is capped at 512 chars; anything much larger is abuse.
const maxRequestBodyBytes = 4 * 1024

// Answerer is the Retrieval Engine contract this handler depends on.
type Answerer interface {
	Answer(ctx context.Context, query string) (*retrieval.Answer, error)
}

// NaturalHandler serves POST /query/natural.
type NaturalHandler struct {
	Engine Answerer
}

func (h NaturalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		respond.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var req NaturalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	answer, err := h.Engine.Answer(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidInput) {
			respond.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
			return
		}
		// Anything past validation is the graph store (or its own LLM
		// plumbing) being unreachable; a query never crashes the process.
		respond.JSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable"})
		return
	}

	respond.JSON(w, http.StatusOK, NaturalResponse{
		Success:   true,
		Query:     answer.Query,
		Analysis:  strategyAnalysis(answer),
		Results:   toResultDTOs(answer.Results),
		Count:     len(answer.Results),
		Timestamp: nowTimestamp(),
	})
}

func strategyAnalysis(a *retrieval.Answer) string {
	switch a.Strategy {
	case repository.StrategyHybrid:
		return "hybrid keyword+vector ranking"
	case repository.StrategyVectorOnly:
		return "vector-only ranking"
	default:
		return "keyword-only ranking"
	}
}
