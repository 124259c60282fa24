package embedder

// embedRequest is the wire shape sent to the embedding sidecar's
// /embedder.EmbedderService/Embed method.
type embedRequest struct {
	Text string `json:"text"`
}

// embedResponse is the wire shape returned by the sidecar. A contract
// violation (wrong dimension, empty vector) is the caller's signal to drop
// the candidate rather than insert a malformed fact, per the Digester's
// failure semantics.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}
