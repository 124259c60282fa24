package digest

import (
	"os"
	"strconv"
	"time"
)

// Config tunes the Digester stage. The external-call timeouts (T_EXTRACT,
// T_EMBED) live in the respective adapters; this config owns the
// store-query deadline and the overall batch budget.
type Config struct {
	BatchSize     int           // BATCH_DIGEST, max articles per pass
	MaxCandidates int           // clamp on the Extractor's candidate list
	MaxFieldLen   int           // clamp on each subject/predicate/object
	MinConfidence float64       // candidates below this are dropped
	DedupeTau     float64       // TAU_DEDUPE, cosine-distance dedupe gate
	QueryTimeout  time.Duration // T_QUERY, per Fact Store query, app-side
	BatchBudget   time.Duration // T_BATCH, soft budget for the whole pass
}

// LoadConfig reads the Digester's environment variables, falling back to
// defaults on anything unset or malformed.
func LoadConfig() Config {
	return Config{
		BatchSize:     getEnvInt("BATCH_DIGEST", 10),
		MaxCandidates: getEnvInt("DIGEST_MAX_CANDIDATES", 25),
		MaxFieldLen:   getEnvInt("DIGEST_MAX_FIELD_LEN", 256),
		MinConfidence: getEnvFloat("DIGEST_MIN_CONFIDENCE", 0.4),
		DedupeTau:     getEnvFloat("TAU_DEDUPE", 0.05),
		QueryTimeout:  getEnvDuration("T_QUERY", 50*time.Second),
		BatchBudget:   getEnvDuration("T_BATCH", 4*time.Minute),
	}
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
