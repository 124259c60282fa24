package searchclient

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Config configures the Provenance Hunter's outbound Search Client. The
// teacher has no outbound rate limiter anywhere (it only consumes RSS feeds
// on its own cadence); a client-side limiter is new for this adapter since
// it is calling a rate-limited third-party search API.
type Config struct {
	Endpoint       string
	APIKey         string
	Timeout        time.Duration // T_SEARCH-equivalent, bounded by SearchClientConfig's circuit breaker
	RateLimit      rate.Limit    // requests per second
	RateBurst      int
	MaxResults     int
	DenyPrivateIPs bool
}

// LoadConfig reads SEARCH_CLIENT_* environment variables.
func LoadConfig() Config {
	return Config{
		Endpoint:       getEnv("SEARCH_CLIENT_ENDPOINT", ""),
		APIKey:         os.Getenv("SEARCH_CLIENT_API_KEY"),
		Timeout:        getEnvDuration("SEARCH_CLIENT_TIMEOUT", 20*time.Second),
		RateLimit:      rate.Limit(getEnvFloat("SEARCH_CLIENT_RATE_LIMIT", 2.0)),
		RateBurst:      getEnvInt("SEARCH_CLIENT_RATE_BURST", 5),
		MaxResults:     getEnvInt("SEARCH_CLIENT_MAX_RESULTS", 10),
		DenyPrivateIPs: getEnvBool("SEARCH_CLIENT_DENY_PRIVATE_IPS", true),
	}
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("SEARCH_CLIENT_ENDPOINT cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("SEARCH_CLIENT_TIMEOUT must be positive")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("SEARCH_CLIENT_MAX_RESULTS must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
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

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true"
}
