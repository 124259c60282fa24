package provenance

import (
	"os"
	"strconv"
	"time"
)

// Config tunes the Provenance Hunter stage.
type Config struct {
	BatchSize     int           // BATCH_PROV, max facts per pass
	Tau           float64       // TAU_PROV, cosine-distance match radius
	MaxSkips      int           // skips per pass before the stage gives up early
	QueryTimeout  time.Duration // T_QUERY, per Fact Store query, app-side
	SearchTimeout time.Duration // per external search call
}

// LoadConfig reads the Provenance Hunter's environment variables, falling
// back to defaults on anything unset or malformed.
func LoadConfig() Config {
	return Config{
		BatchSize:     getEnvInt("BATCH_PROV", 20),
		Tau:           getEnvFloat("TAU_PROV", 0.15),
		MaxSkips:      getEnvInt("PROV_MAX_SKIPS", 5),
		QueryTimeout:  getEnvDuration("T_QUERY", 50*time.Second),
		SearchTimeout: getEnvDuration("T_SEARCH", 15*time.Second),
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
