// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Pipeline metrics (articles, facts, provenance decisions, graph syncs)
//   - Database query metrics
//   - Application performance metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "catchup-feed/internal/observability/metrics"
//
//	func digestArticle() {
//	    start := time.Now()
//	    // ... extract, embed, dedupe ...
//
//	    metrics.RecordFactDisposition("inserted")
//	    metrics.RecordOperationDuration("digest_article", time.Since(start))
//	}
package metrics
