package retrieval

import (
	"os"
	"strconv"
)

// Config tunes the retrieval engine's expansion and scoring.
type Config struct {
	NExpand       int     // N_EXPAND, LLM variant count
	NResults      int     // N_RESULTS, ranked result limit
	WeightKeyword float64 // W_KEYWORD
	WeightVector  float64 // W_VECTOR
}

// LoadConfig reads the engine's environment variables, falling back to
// defaults on anything unset or malformed.
func LoadConfig() Config {
	return Config{
		NExpand:       getEnvInt("N_EXPAND", 3),
		NResults:      getEnvInt("N_RESULTS", 15),
		WeightKeyword: getEnvFloat("W_KEYWORD", 0.5),
		WeightVector:  getEnvFloat("W_VECTOR", 0.5),
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
