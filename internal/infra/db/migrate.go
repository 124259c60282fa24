package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/feed_sources.sql
var seedFeedSourcesSQL string

// MigrateUp creates the Fact Store schema: feed_sources, articles, processing_queue,
// and extracted_facts (with its pgvector embedding column).
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feed_sources (
    id              SERIAL PRIMARY KEY,
    name            TEXT NOT NULL,
    feed_url        TEXT NOT NULL UNIQUE,
    kind            VARCHAR(20) NOT NULL DEFAULT 'RSS',
    last_crawled_at TIMESTAMPTZ,
    active          BOOLEAN NOT NULL DEFAULT TRUE
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id               SERIAL PRIMARY KEY,
    url              TEXT NOT NULL UNIQUE,
    title            TEXT NOT NULL DEFAULT '',
    publisher        TEXT NOT NULL DEFAULT '',
    ingestion_source VARCHAR(20) NOT NULL DEFAULT 'RSS',
    published_at     TIMESTAMPTZ,
    raw_text         TEXT,
    processed_at     TIMESTAMPTZ,
    is_reference     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS processing_queue (
    id         SERIAL PRIMARY KEY,
    article_id INTEGER NOT NULL UNIQUE REFERENCES articles(id) ON DELETE CASCADE,
    status     VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    attempts   INTEGER NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	articleIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_processed_at ON articles(processed_at) WHERE processed_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_feed_sources_active ON feed_sources(active) WHERE active = TRUE`,
		`CREATE INDEX IF NOT EXISTS idx_processing_queue_status ON processing_queue(status)`,
	}
	for _, idx := range articleIndexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// pgvector extension: required for the extracted_facts embedding column below.
	// Ignored on error so a restricted role can still run the rest of the migration
	// against a database where an operator has already enabled it.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS extracted_facts (
    id            SERIAL PRIMARY KEY,
    article_id    INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    subject       TEXT NOT NULL,
    predicate     TEXT NOT NULL,
    object        TEXT NOT NULL,
    confidence    DOUBLE PRECISION NOT NULL,
    embedding     vector(384) NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    checked_at    TIMESTAMPTZ,
    is_original   BOOLEAN,
    provenance_id INTEGER REFERENCES extracted_facts(id)
)`); err != nil {
		return err
	}

	factIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_extracted_facts_article_id ON extracted_facts(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_extracted_facts_checked_at ON extracted_facts(checked_at) WHERE checked_at IS NULL`,
	}
	for _, idx := range factIndexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// IVFFlat cosine index over the fact embeddings. Ignored on error: it depends on
	// the vector extension above and on a non-trivial row count to size "lists" well,
	// neither of which a fresh database is guaranteed to have yet.
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_extracted_facts_embedding
    ON extracted_facts USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	if _, err := db.Exec(seedFeedSourcesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown drops the Fact Store schema. Use with caution: this deletes all data.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_extracted_facts_embedding`,
		`DROP TABLE IF EXISTS extracted_facts CASCADE`,
		`DROP TABLE IF EXISTS processing_queue CASCADE`,
		`DROP TABLE IF EXISTS articles CASCADE`,
		`DROP TABLE IF EXISTS feed_sources CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDownFactsOnly rolls back only the extracted_facts table, preserving the
// ingest/hydrate schema — useful when iterating on the embedding dimension or the
// dedupe/provenance columns without re-ingesting articles.
func MigrateDownFactsOnly(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_extracted_facts_embedding`,
		`DROP INDEX IF EXISTS idx_extracted_facts_checked_at`,
		`DROP INDEX IF EXISTS idx_extracted_facts_article_id`,
		`DROP TABLE IF EXISTS extracted_facts CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
