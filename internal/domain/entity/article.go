// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects of the knowledge-graph pipeline — Article,
// ProcessingQueueEntry, Fact, Assertion — along with their invariants and domain errors.
package entity

import "time"

// IngestionSource identifies which worker introduced an Article.
type IngestionSource string

const (
	SourceRSS    IngestionSource = "RSS"
	SourceEvents IngestionSource = "EVENTS"
)

// Article represents a news item ingested into the pipeline.
// Its url is unique; processed_at is stamped by the Digester only after raw_text
// was available, and is_reference articles (external provenance citations) never
// get a processing queue entry.
type Article struct {
	ID              int64
	URL             string
	Title           string
	Publisher       string
	IngestionSource IngestionSource
	PublishedAt     *time.Time
	RawText         *string
	ProcessedAt     *time.Time
	IsReference     bool
	CreatedAt       time.Time
}

// ReadyForDigest reports whether this article is eligible for process_batch():
// it has text to work with and has not already been stamped.
func (a *Article) ReadyForDigest() bool {
	return a.ProcessedAt == nil && a.RawText != nil
}
