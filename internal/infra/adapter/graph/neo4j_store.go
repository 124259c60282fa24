package graph

import (
	"context"
	"errors"
	"fmt"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/repository"
	"catchup-feed/internal/resilience/circuitbreaker"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen indicates too many recent Graph Store failures; calls are
// short-circuited without opening a session.
var ErrCircuitOpen = errors.New("graph store circuit breaker open")

// Neo4jGraphStore is the Publisher's and Retrieval Engine's adapter onto
// Neo4j. The driver is a process-wide singleton; sessions are opened and
// closed per call and never span stages, per the pipeline's shared-resource
// policy. Every session call runs through a circuit breaker so a down
// graph store sheds load instead of stacking Bolt timeouts.
type Neo4jGraphStore struct {
	driver         neo4j.DriverWithContext
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) repository.GraphRepository {
	return &Neo4jGraphStore{
		driver:         driver,
		circuitBreaker: circuitbreaker.New(circuitbreaker.GraphStoreConfig()),
	}
}

// execute runs one session-scoped operation through the circuit breaker.
func (s *Neo4jGraphStore) execute(op string, fn func() (any, error)) (any, error) {
	result, err := s.circuitBreaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", op, ErrCircuitOpen)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// constraintStatements are asserted once per process start; each is an
// idempotent CREATE CONSTRAINT IF NOT EXISTS.
var constraintStatements = []string{
	`CREATE CONSTRAINT IF NOT EXISTS FOR (a:Article) REQUIRE a.id IS UNIQUE`,
	`CREATE CONSTRAINT IF NOT EXISTS FOR (f:Fact) REQUIRE f.id IS UNIQUE`,
}

// articleMergeStatement builds the idempotent MERGE for one Article node.
// Values travel exclusively through the parameter map, never the query text.
func articleMergeStatement(a entity.ArticleNode) (string, map[string]any) {
	return `MERGE (n:Article {id: $id})
		 SET n.title = $title, n.url = $url, n.published_date = $published_date, n.is_reference = $is_reference`,
		map[string]any{
			"id":             a.ID,
			"title":          a.Title,
			"url":            a.URL,
			"published_date": a.PublishedDate,
			"is_reference":   a.IsReference,
		}
}

// factMergeStatement builds the idempotent MERGE for one Fact node,
// including its embedding array as IEEE-754 doubles.
func factMergeStatement(f entity.FactNode) (string, map[string]any) {
	return `MERGE (n:Fact {id: $id})
		 SET n.text = $text, n.subject = $subject, n.predicate = $predicate,
		     n.object = $object, n.confidence = $confidence, n.embedding = $embedding`,
		map[string]any{
			"id":         f.ID,
			"text":       f.Statement(),
			"subject":    f.Subject,
			"predicate":  f.Predicate,
			"object":     f.Object,
			"confidence": f.Confidence,
			"embedding":  f32ToF64(f.Embedding),
		}
}

// assertionMergeStatement builds the MERGE for one (:Article)-[:ASSERTED]->(:Fact)
// edge. The article end is the asserting article: the fact's own source
// article for an original fact, the provenance root's article for a
// non-original one (falling back to the source article when the provenance
// was recorded against an external reference and carries no fact id).
func assertionMergeStatement(a entity.AssertionEdge) (string, map[string]any) {
	articleID := a.ArticleID
	if !a.IsOriginal && a.ProvenanceID != nil {
		articleID = *a.ProvenanceID
	}
	return `MATCH (a:Article {id: $article_id}), (f:Fact {id: $fact_id})
		 MERGE (a)-[:ASSERTED]->(f)`,
		map[string]any{
			"article_id": articleID,
			"fact_id":    a.ID,
		}
}

func (s *Neo4jGraphStore) EnsureConstraints(ctx context.Context) error {
	_, err := s.execute("EnsureConstraints", func() (any, error) {
		sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer func() { _ = sess.Close(ctx) }()

		for _, cypher := range constraintStatements {
			if _, err := sess.Run(ctx, cypher, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// SyncArticles MERGEs one Article node per article, keyed by id.
func (s *Neo4jGraphStore) SyncArticles(ctx context.Context, articles []entity.ArticleNode) error {
	if len(articles) == 0 {
		return nil
	}
	_, err := s.execute("SyncArticles", func() (any, error) {
		sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer func() { _ = sess.Close(ctx) }()

		return sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, a := range articles {
				cypher, params := articleMergeStatement(a)
				if _, err := tx.Run(ctx, cypher, params); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
	})
	return err
}

// SyncFacts MERGEs one Fact node per fact, keyed by id, including its
// embedding array.
func (s *Neo4jGraphStore) SyncFacts(ctx context.Context, facts []entity.FactNode) error {
	if len(facts) == 0 {
		return nil
	}
	_, err := s.execute("SyncFacts", func() (any, error) {
		sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer func() { _ = sess.Close(ctx) }()

		return sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, f := range facts {
				cypher, params := factMergeStatement(f)
				if _, err := tx.Run(ctx, cypher, params); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
	})
	return err
}

// SyncAssertions MERGEs the (:Article)-[:ASSERTED]->(:Fact) edge for each
// assertion.
func (s *Neo4jGraphStore) SyncAssertions(ctx context.Context, assertions []entity.AssertionEdge) error {
	if len(assertions) == 0 {
		return nil
	}
	_, err := s.execute("SyncAssertions", func() (any, error) {
		sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer func() { _ = sess.Close(ctx) }()

		return sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, a := range assertions {
				cypher, params := assertionMergeStatement(a)
				if _, err := tx.Run(ctx, cypher, params); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
	})
	return err
}

func (s *Neo4jGraphStore) Answer(ctx context.Context, q repository.RetrievalQuery) ([]entity.RetrievedFact, error) {
	cypher, params := BuildAnswerQuery(q)

	result, err := s.execute("Answer", func() (any, error) {
		sess := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer func() { _ = sess.Close(ctx) }()

		res, err := sess.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var facts []entity.RetrievedFact
		for res.Next(ctx) {
			f, err := recordToRetrievedFact(res.Record())
			if err != nil {
				return nil, err
			}
			facts = append(facts, f)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return facts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]entity.RetrievedFact), nil
}

// FactGraph fetches one fact node with its asserting articles and edges.
func (s *Neo4jGraphStore) FactGraph(ctx context.Context, factID int64) ([]entity.GraphElement, error) {
	result, err := s.execute("FactGraph", func() (any, error) {
		sess := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer func() { _ = sess.Close(ctx) }()

		res, err := sess.Run(ctx,
			`MATCH (f:Fact {id: $id})
			 OPTIONAL MATCH (a:Article)-[:ASSERTED]->(f)
			 RETURN f.id AS fact_id, f.text AS text, f.confidence AS confidence,
			        a.id AS article_id, a.title AS title, a.url AS url, a.is_reference AS is_reference`,
			map[string]any{"id": factID})
		if err != nil {
			return nil, err
		}

		var elements []entity.GraphElement
		seenFact := false
		for res.Next(ctx) {
			rec := res.Record()
			if !seenFact {
				id, _, err := neo4j.GetRecordValue[int64](rec, "fact_id")
				if err != nil {
					return nil, err
				}
				text, _, _ := neo4j.GetRecordValue[string](rec, "text")
				confidence, _, _ := neo4j.GetRecordValue[float64](rec, "confidence")
				elements = append(elements, entity.GraphElement{
					Group: "nodes",
					Data: map[string]any{
						"id":         fmt.Sprintf("fact-%d", id),
						"kind":       "fact",
						"text":       text,
						"confidence": confidence,
					},
				})
				seenFact = true
			}

			articleID, isNil, err := neo4j.GetRecordValue[int64](rec, "article_id")
			if err != nil || isNil {
				continue
			}
			title, _, _ := neo4j.GetRecordValue[string](rec, "title")
			url, _, _ := neo4j.GetRecordValue[string](rec, "url")
			isReference, _, _ := neo4j.GetRecordValue[bool](rec, "is_reference")
			elements = append(elements,
				entity.GraphElement{
					Group: "nodes",
					Data: map[string]any{
						"id":           fmt.Sprintf("article-%d", articleID),
						"kind":         "article",
						"title":        title,
						"url":          url,
						"is_reference": isReference,
					},
				},
				entity.GraphElement{
					Group: "edges",
					Data: map[string]any{
						"id":     fmt.Sprintf("asserted-%d-%d", articleID, factID),
						"source": fmt.Sprintf("article-%d", articleID),
						"target": fmt.Sprintf("fact-%d", factID),
						"label":  "ASSERTED",
					},
				},
			)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return elements, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]entity.GraphElement), nil
}

func recordToRetrievedFact(rec *neo4j.Record) (entity.RetrievedFact, error) {
	id, _, err := neo4j.GetRecordValue[int64](rec, "id")
	if err != nil {
		return entity.RetrievedFact{}, err
	}
	statement, _, _ := neo4j.GetRecordValue[string](rec, "statement")
	subject, _, _ := neo4j.GetRecordValue[string](rec, "subject")
	predicate, _, _ := neo4j.GetRecordValue[string](rec, "predicate")
	object, _, _ := neo4j.GetRecordValue[string](rec, "object")
	confidence, _, _ := neo4j.GetRecordValue[float64](rec, "confidence")
	relevance, _, _ := neo4j.GetRecordValue[float64](rec, "relevance")

	return entity.RetrievedFact{
		ID:         id,
		Statement:  statement,
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Confidence: confidence,
		Relevance:  relevance,
	}, nil
}
