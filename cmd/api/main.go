// Command api is the HTTP façade in front of the Retrieval Engine. It is
// deliberately thin: two query endpoints, health probes, and metrics. All
// authoritative state lives behind the worker pipeline; this process only
// reads the Graph Store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"catchup-feed/internal/infra/adapter/embedder"
	"catchup-feed/internal/infra/adapter/extractor"
	graphAdapter "catchup-feed/internal/infra/adapter/graph"
	"catchup-feed/internal/infra/db"
	"catchup-feed/internal/observability/logging"
	"catchup-feed/internal/observability/tracing"
	"catchup-feed/internal/repository"
	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/usecase/retrieval"

	hhttp "catchup-feed/internal/handler/http"
	hquery "catchup-feed/internal/handler/http/query"
	"catchup-feed/internal/handler/http/requestid"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	graphDriver := initGraphDriver(logger)
	engine, graphStore := setupRetrieval(logger, graphDriver)

	handler := setupHandler(logger, database, graphDriver, engine, graphStore)

	runServer(logger, handler, graphDriver, getVersion())
}

// initDatabase opens the database connection and runs migrations. The façade
// only reads the Fact Store for health checks, but a missing schema is still
// a deployment error worth failing fast on.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// initGraphDriver creates the process-wide Neo4j driver singleton.
func initGraphDriver(logger *slog.Logger) neo4j.DriverWithContext {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	password := os.Getenv("NEO4J_PASSWORD")
	if user == "" || password == "" {
		logger.Error("NEO4J_USER and NEO4J_PASSWORD are required")
		os.Exit(1)
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		logger.Error("failed to create graph driver", slog.Any("error", err))
		os.Exit(1)
	}
	return driver
}

// setupRetrieval wires the Retrieval Engine: graph store, query expander,
// and embedding client.
func setupRetrieval(logger *slog.Logger, driver neo4j.DriverWithContext) (*retrieval.Engine, repository.GraphRepository) {
	graphStore := graphAdapter.NewNeo4jGraphStore(driver)

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		logger.Error("ANTHROPIC_API_KEY is required for query expansion")
		os.Exit(1)
	}
	expander := extractor.NewQueryExpander(anthropicKey)

	em, err := embedder.New(embedder.LoadConfig())
	if err != nil {
		logger.Error("embedder initialization failed", slog.Any("error", err))
		os.Exit(1)
	}

	engine := retrieval.NewEngine(graphStore, expander, em, retrieval.LoadConfig())
	logger.Info("retrieval engine initialized",
		slog.Int("n_expand", engine.Config.NExpand),
		slog.Int("n_results", engine.Config.NResults))
	return engine, graphStore
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// setupHandler registers the façade's routes — the two query endpoints plus
// operational probes — and wraps them in the middleware chain. There is no
// mutating surface and therefore no authentication layer.
func setupHandler(logger *slog.Logger, database *sql.DB, graphDriver neo4j.DriverWithContext, engine *retrieval.Engine, graphStore repository.GraphRepository) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", &hhttp.HealthHandler{
		DB:        database,
		Version:   getVersion(),
		DBBreaker: circuitbreaker.NewDBCircuitBreaker(database),
		Graph:     graphDriver,
	})
	mux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())

	// The natural-language endpoint fans out to the LLM and the embedder per
	// request, so the query routes get their own budget on top of whatever
	// sits in front of this process.
	queryRateLimiter := hhttp.NewRateLimiter(60, time.Minute)
	hquery.Register(mux, engine, graphStore, queryRateLimiter.Limit)

	// Middleware chain, applied in reverse order (innermost to outermost):
	// Request ID → Tracing → Recovery → Logging → Timeout → Body Limit → Metrics
	var handler http.Handler = mux
	handler = hhttp.MetricsMiddleware(handler)
	handler = hhttp.LimitRequestBody(1 << 20)(handler) // 1MB limit
	handler = hhttp.Timeout(30 * time.Second)(handler)
	handler = hhttp.Logging(logger)(handler)
	handler = hhttp.Recover(logger)(handler)
	handler = tracing.Middleware(handler)
	handler = requestid.Middleware(handler)

	return handler
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, handler http.Handler, graphDriver neo4j.DriverWithContext, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", ":8080"),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	if err := graphDriver.Close(shutdownCtx); err != nil {
		logger.Error("graph driver close failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
