package extractor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_request_duration_seconds",
			Help:    "Time taken by an Extractor Client call, by provider.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"provider"},
	)
	candidatesPerCall = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractor_candidates_per_call",
			Help:    "Number of (subject,predicate,object) candidates parsed from one Extractor response.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
)
