package embedder

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config configures the Embedder Client's gRPC connection to the embedding
// sidecar. MaxTextChars mirrors the Embedder contract: text longer than this
// is truncated before the call rather than rejected, since the Digester
// would otherwise have to re-chunk and re-call.
type Config struct {
	GRPCAddress       string
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration // T_EMBED, default 10s
	MaxTextChars      int           // default 512
}

// LoadConfig reads EMBEDDER_* environment variables, falling back to
// defaults for anything unset or malformed, matching the teacher's
// fail-open config loading idiom.
func LoadConfig() Config {
	return Config{
		GRPCAddress:       getEnvOrDefault("EMBEDDER_GRPC_ADDRESS", "localhost:50052"),
		ConnectionTimeout: getEnvDuration("EMBEDDER_CONNECTION_TIMEOUT", 10*time.Second),
		RequestTimeout:    getEnvDuration("EMBEDDER_REQUEST_TIMEOUT", 10*time.Second),
		MaxTextChars:      getEnvInt("EMBEDDER_MAX_TEXT_CHARS", 512),
	}
}

func (c Config) Validate() error {
	if c.GRPCAddress == "" {
		return fmt.Errorf("EMBEDDER_GRPC_ADDRESS cannot be empty")
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("EMBEDDER_CONNECTION_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("EMBEDDER_REQUEST_TIMEOUT must be positive")
	}
	if c.MaxTextChars <= 0 {
		return fmt.Errorf("EMBEDDER_MAX_TEXT_CHARS must be positive")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
