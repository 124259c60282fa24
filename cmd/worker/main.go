// Command worker is the pipeline process: one long-lived Orchestrator
// driving ingest, hydrate, digest, provenance, and publish as in-process
// stages. Stages are never spawned as child processes — the host
// orchestrator kills children that go quiet, and captured pipe output
// deadlocks on a blocking wait — so everything runs as direct calls from
// this binary.
package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
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
	pgRepo "catchup-feed/internal/infra/adapter/persistence/postgres"
	"catchup-feed/internal/infra/adapter/searchclient"
	"catchup-feed/internal/infra/db"
	"catchup-feed/internal/infra/fetcher"
	"catchup-feed/internal/infra/scraper"
	workerPkg "catchup-feed/internal/infra/worker"
	"catchup-feed/internal/observability/logging"
	"catchup-feed/internal/usecase/digest"
	"catchup-feed/internal/usecase/hydrate"
	"catchup-feed/internal/usecase/ingest"
	"catchup-feed/internal/usecase/notify"
	"catchup-feed/internal/usecase/provenance"
	"catchup-feed/internal/usecase/publish"
)

func main() {
	logger := initLogger()

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	graphDriver := initGraphDriver(logger)

	// Termination: flush to the output streams directly and leave. The
	// handler must never route through a subsystem whose lock a blocked
	// task may hold, so cancellation is a context, not a logging hook.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("ingest_every", workerConfig.IngestEvery),
		slog.Duration("digest_every", workerConfig.DigestEvery),
		slog.Duration("provenance_every", workerConfig.ProvenanceEvery),
		slog.Duration("publish_every", workerConfig.PublishEvery),
		slog.Duration("stage_timeout", workerConfig.StageTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	notifyService := initNotifyService(logger)

	startMetricsServer(ctx, logger, notifyService)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	orchestrator := buildPipeline(ctx, logger, database, graphDriver, workerConfig, workerMetrics, notifyService)

	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	if err := orchestrator.Start(ctx); err != nil {
		logger.Error("orchestrator failed", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), workerConfig.CancelGrace)
	defer cancel()
	if err := graphDriver.Close(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "graph driver close: %v\n", err)
	}
	if err := notifyService.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "notify shutdown: %v\n", err)
	}
	fmt.Fprintln(os.Stderr, "worker stopped")
}

// buildPipeline wires every stage and registers them on the Orchestrator in
// rotation order.
func buildPipeline(ctx context.Context, logger *slog.Logger, database *sql.DB, graphDriver neo4j.DriverWithContext, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, notifyService notify.Service) *workerPkg.Orchestrator {
	srcRepo := pgRepo.NewSourceRepo(database)
	artRepo := pgRepo.NewArticleRepo(database)
	queueRepo := pgRepo.NewQueueRepo(database)
	factRepo := pgRepo.NewFactRepo(database)

	httpClient := createHTTPClient()
	feedWorker := ingest.NewFeedWorker(srcRepo, artRepo, queueRepo, scraper.NewRSSFetcher(httpClient), ingest.LoadFeedConfig())
	eventsWorker := ingest.NewEventsWorker(artRepo, queueRepo, httpClient, ingest.LoadEventsConfig())

	contentFetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("invalid content fetch configuration, using defaults", slog.Any("error", err))
		contentFetchConfig = fetcher.DefaultConfig()
	}
	hydrateService := hydrate.NewService(artRepo, queueRepo, fetcher.NewReadabilityFetcher(contentFetchConfig), hydrate.LoadConfig())

	digestService := digest.NewService(artRepo, factRepo, createExtractor(logger), createEmbedder(logger), digest.LoadConfig())

	search, err := searchclient.New(searchclient.LoadConfig())
	if err != nil {
		logger.Error("search client configuration invalid", slog.Any("error", err))
		os.Exit(1)
	}
	provenanceService := provenance.NewService(factRepo, artRepo, search, provenance.LoadConfig())

	graphStore := graphAdapter.NewNeo4jGraphStore(graphDriver)
	if err := graphStore.EnsureConstraints(ctx); err != nil {
		logger.Warn("graph constraints not asserted yet, publisher will retry on first sync",
			slog.Any("error", err))
	}
	publishService := publish.NewService(factRepo, artRepo, graphStore)

	notifyFailure := func(stage string, err error) {
		if err == nil {
			return
		}
		safeCtx := context.WithoutCancel(ctx)
		if notifyErr := notifyService.NotifyStageFailure(safeCtx, stage, err); notifyErr != nil {
			logger.Warn("stage failure notification failed", slog.Any("error", notifyErr))
		}
	}

	o := workerPkg.NewOrchestrator(cfg, metrics, logger)
	o.AddStage("ingest", cfg.IngestEvery, func(ctx context.Context) (int, string, error) {
		feedInserted, feedErr := feedWorker.IngestOnce(ctx)
		eventsInserted, eventsErr := eventsWorker.IngestOnce(ctx)
		if eventsErr != nil {
			// The events endpoint failing must not hide a healthy feed pass.
			logger.Warn("events ingest failed", slog.Any("error", eventsErr))
		}
		notifyFailure("ingest", feedErr)
		return feedInserted + eventsInserted,
			fmt.Sprintf("feed=%d events=%d", feedInserted, eventsInserted), feedErr
	})
	o.AddStage("hydrate", cfg.HydrateEvery, func(ctx context.Context) (int, string, error) {
		summary, err := hydrateService.HydrateOnce(ctx)
		notifyFailure("hydrate", err)
		return summary.Scraped,
			fmt.Sprintf("scraped=%d retried=%d failed=%d", summary.Scraped, summary.Retried, summary.Failed), err
	})
	o.AddStage("digest", cfg.DigestEvery, func(ctx context.Context) (int, string, error) {
		summary, err := digestService.ProcessBatch(ctx)
		notifyFailure("digest", err)
		return summary.Articles,
			fmt.Sprintf("articles=%d facts=%d duplicates=%d dropped=%d failed=%d",
				summary.Articles, summary.Facts, summary.Duplicates, summary.Dropped, summary.Failed), err
	})
	o.AddStage("provenance", cfg.ProvenanceEvery, func(ctx context.Context) (int, string, error) {
		summary, err := provenanceService.HuntOnce(ctx)
		notifyFailure("provenance", err)
		return summary.Checked,
			fmt.Sprintf("checked=%d originals=%d internal=%d external=%d skipped=%d",
				summary.Checked, summary.Originals, summary.InternalPriors, summary.ExternalPriors, summary.Skipped), err
	})
	o.AddStage("publish", cfg.PublishEvery, func(ctx context.Context) (int, string, error) {
		summary, err := publishService.SyncOnce(ctx)
		notifyFailure("publish", err)
		return summary.Facts,
			fmt.Sprintf("articles=%d facts=%d assertions=%d", summary.Articles, summary.Facts, summary.Assertions), err
	})
	return o
}

// initLogger initializes the structured JSON logger.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the Fact Store and runs migrations. A schema failure
// here is a fatal config error: exit non-zero before the main loop.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("migrations failed", slog.Any("error", err))
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
	logger.Info("graph driver initialized", slog.String("uri", uri))
	return driver
}

// createExtractor builds the Claude-primary, OpenAI-fallback fact extractor.
// EXECUTION_MODE=cloud (the default) requires the hosted API keys; local
// mode still reaches the same contracts, just against locally served
// endpoints, so key handling is identical.
func createExtractor(logger *slog.Logger) digest.Extractor {
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		logger.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	primary := extractor.NewClaude(anthropicKey)

	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		logger.Info("OPENAI_API_KEY not set, extractor runs without fallback")
		return primary
	}
	return extractor.NewFallback(primary, extractor.NewOpenAI(openaiKey))
}

// createEmbedder dials the embedding sidecar. No sidecar is a fatal config
// error: every downstream stage depends on embeddings existing.
func createEmbedder(logger *slog.Logger) digest.Embedder {
	mode := os.Getenv("EXECUTION_MODE")
	if mode == "" {
		mode = "cloud"
	}
	logger.Info("embedder execution mode", slog.String("mode", mode))

	em, err := embedder.New(embedder.LoadConfig())
	if err != nil {
		logger.Error("embedder initialization failed", slog.Any("error", err))
		os.Exit(1)
	}
	return em
}

// createHTTPClient creates the shared outbound HTTP client. TLS 1.2+ only.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
