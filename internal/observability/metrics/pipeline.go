package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics track each stage of the ingestion-to-publication pipeline.
var (
	// FactsExtractedTotal counts fact candidates by what happened to them.
	FactsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_facts_extracted_total",
			Help: "Total fact candidates by disposition (inserted, duplicate, dropped)",
		},
		[]string{"disposition"},
	)

	// ProvenanceDecisionsTotal counts Provenance Hunter verdicts.
	ProvenanceDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_provenance_decisions_total",
			Help: "Total provenance decisions by verdict (original, internal_prior, external_prior)",
		},
		[]string{"verdict"},
	)

	// GraphSyncedTotal counts nodes and edges MERGEd into the Graph Store.
	GraphSyncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_graph_synced_total",
			Help: "Total graph elements synced by kind (article, fact, assertion)",
		},
		[]string{"kind"},
	)

	// RetrievalQueriesTotal counts retrieval queries by strategy and outcome.
	RetrievalQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_queries_total",
			Help: "Total retrieval queries by strategy (hybrid, vector, keyword) and status",
		},
		[]string{"strategy", "status"},
	)

	// RetrievalDuration measures end-to-end retrieval latency.
	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_query_duration_seconds",
			Help:    "End-to-end retrieval query duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// RecordFactDisposition records what the Digester did with one candidate.
// Disposition is one of "inserted", "duplicate", "dropped".
func RecordFactDisposition(disposition string) {
	FactsExtractedTotal.WithLabelValues(disposition).Inc()
}

// RecordProvenanceDecision records one Provenance Hunter verdict.
// Verdict is one of "original", "internal_prior", "external_prior".
func RecordProvenanceDecision(verdict string) {
	ProvenanceDecisionsTotal.WithLabelValues(verdict).Inc()
}

// RecordGraphSynced records elements MERGEd into the Graph Store.
func RecordGraphSynced(kind string, count int) {
	if count > 0 {
		GraphSyncedTotal.WithLabelValues(kind).Add(float64(count))
	}
}

// RecordRetrievalQuery records one retrieval query's strategy and latency.
func RecordRetrievalQuery(strategy string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	RetrievalQueriesTotal.WithLabelValues(strategy, status).Inc()
	RetrievalDuration.Observe(duration.Seconds())
}
