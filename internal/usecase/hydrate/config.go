package hydrate

import (
	"os"
	"strconv"
	"time"
)

// Config tunes the Hydrator stage.
type Config struct {
	BatchSize     int           // BATCH_HYDRATE, max articles per pass
	Concurrency   int           // CONC_HYDRATE, concurrent URL fetches
	PerURLTimeout time.Duration // T_HYDRATE, wall-clock budget per URL
	MaxAttempts   int           // queue entry moves to FAILED at this count
}

// LoadConfig reads the Hydrator's environment variables, falling back to
// defaults on anything unset or malformed.
func LoadConfig() Config {
	return Config{
		BatchSize:     getEnvInt("BATCH_HYDRATE", 20),
		Concurrency:   getEnvInt("CONC_HYDRATE", 5),
		PerURLTimeout: getEnvDuration("T_HYDRATE", 15*time.Second),
		MaxAttempts:   getEnvInt("HYDRATE_MAX_ATTEMPTS", 3),
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
