// Package embedder adapts the Digester's Embedder dependency onto a gRPC
// sidecar, mirroring the teacher's internal/infra/grpc AI-provider adapter:
// same connection lifecycle, circuit breaker, and error-mapping shape, with
// a JSON wire codec standing in for the generated protobuf stubs the
// teacher's own equivalent depends on but does not ship.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var (
	embedderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedder_client_requests_total",
			Help: "Total number of Embedder Client requests.",
		},
		[]string{"status"},
	)
	embedderRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embedder_client_request_duration_seconds",
			Help:    "Embedder Client request duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)
)

// Embedder is the contract internal/usecase/digest depends on. Kept here
// too (rather than only in the usecase package) because this adapter is
// also reused, unmodified, by internal/usecase/provenance for statement
// re-embedding during dedupe checks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	// ErrUnavailable indicates the embedding sidecar is not reachable.
	ErrUnavailable = errors.New("embedder service unavailable")
	// ErrCircuitOpen indicates too many recent failures; requests are
	// short-circuited without hitting the network.
	ErrCircuitOpen = errors.New("embedder circuit breaker open")
	// ErrContractViolation indicates the sidecar returned a vector of the
	// wrong shape. The Digester treats this as "drop this candidate" per
	// its failure semantics, not as a retryable transport error.
	ErrContractViolation = errors.New("embedder contract violation")
)

// ExpectedDimension is the fixed vector width the rest of the pipeline
// (pgvector column, Neo4j Fact.embedding, hybrid Cypher) assumes.
const ExpectedDimension = 384

// GRPCEmbedder implements Embedder over a long-lived gRPC connection.
type GRPCEmbedder struct {
	conn           *grpc.ClientConn
	config         Config
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	logger         *slog.Logger
}

// New dials the embedding sidecar and blocks (up to cfg.ConnectionTimeout)
// until the connection is ready, matching the teacher's fail-fast startup
// behavior for the AI provider.
func New(cfg Config) (*GRPCEmbedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedder config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	conn, err := grpc.NewClient(
		cfg.GRPCAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder: dial: %w", err)
	}

	conn.Connect()
	if !waitForConnection(ctx, conn) {
		_ = conn.Close()
		return nil, fmt.Errorf("embedder: connection timeout")
	}

	return &GRPCEmbedder{
		conn:           conn,
		config:         cfg,
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbedderConfig()),
		retryConfig:    retry.EmbedderConfig(),
		logger:         slog.Default(),
	}, nil
}

// Embed truncates text to MaxTextChars, calls the sidecar through the
// circuit breaker and retry helper, and validates the returned vector is
// exactly ExpectedDimension wide before handing it back.
func (e *GRPCEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrContractViolation)
	}
	if len(text) > e.config.MaxTextChars {
		text = text[:e.config.MaxTextChars]
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	var embedding []float32

	err := retry.WithBackoff(ctx, e.retryConfig, func() error {
		result, cbErr := e.circuitBreaker.Execute(func() (any, error) {
			resp := &embedResponse{}
			invokeErr := e.conn.Invoke(ctx, "/embedder.EmbedderService/Embed", &embedRequest{Text: text}, resp)
			if invokeErr != nil {
				return nil, mapGRPCError(invokeErr)
			}
			return resp, nil
		})
		if cbErr != nil {
			return cbErr
		}
		embedding = result.(*embedResponse).Embedding
		return nil
	})

	embedderRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			embedderRequestsTotal.WithLabelValues("circuit_open").Inc()
			return nil, ErrCircuitOpen
		}
		embedderRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(embedding) != ExpectedDimension {
		embedderRequestsTotal.WithLabelValues("contract_violation").Inc()
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrContractViolation, len(embedding), ExpectedDimension)
	}

	embedderRequestsTotal.WithLabelValues("success").Inc()
	return embedding, nil
}

// Close releases the underlying connection.
func (e *GRPCEmbedder) Close() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

func mapGRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded, codes.Unavailable, codes.ResourceExhausted:
		// Wrap both the sentinel and the original status error so
		// retry.IsRetryable's status.FromError lookup still finds it.
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %w", ErrContractViolation, err)
	default:
		return fmt.Errorf("embedder: %w", err)
	}
}

func waitForConnection(ctx context.Context, conn *grpc.ClientConn) bool {
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return true
		}
		if !conn.WaitForStateChange(ctx, state) {
			return false
		}
	}
}
