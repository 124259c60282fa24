package query

import (
	"context"
	"net/http"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/handler/http/pathutil"
	"catchup-feed/internal/handler/http/respond"
)

// GraphViewer is the Graph Store contract the fact-graph endpoint depends on.
type GraphViewer interface {
	FactGraph(ctx context.Context, factID int64) ([]entity.GraphElement, error)
}

// FactGraphHandler serves GET /fact_graph/{id}.
type FactGraphHandler struct {
	Graph GraphViewer
}

func (h FactGraphHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/fact_graph/")
	if err != nil {
		respond.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid fact id"})
		return
	}

	elements, err := h.Graph.FactGraph(r.Context(), id)
	if err != nil {
		respond.JSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable"})
		return
	}
	if elements == nil {
		elements = []entity.GraphElement{}
	}

	respond.JSON(w, http.StatusOK, FactGraphResponse{Elements: elements})
}
