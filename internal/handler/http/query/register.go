package query

import (
	"net/http"
)

// Middleware is a standard wrap-style HTTP middleware.
type Middleware func(http.Handler) http.Handler

// Register wires the query façade's two endpoints onto the mux. Both are
// anonymous read endpoints; limit is the per-endpoint rate limiter keeping
// one noisy consumer from starving the Retrieval Engine's LLM budget.
func Register(mux *http.ServeMux, engine Answerer, graph GraphViewer, limit Middleware) {
	mux.Handle("POST /query/natural", limit(NaturalHandler{Engine: engine}))
	mux.Handle("GET /fact_graph/", limit(FactGraphHandler{Graph: graph}))
}
