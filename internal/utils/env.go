package utils

import (
	"os"
	"time"
)

func ParseWithFallback(envName string, fallback string) string {
	if v, ok := os.LookupEnv(envName); ok && v != "" {
		return v
	}

	return fallback
}

// DurationWithFallback reads a time.ParseDuration string from envName.
// Unparsable values fall back too.
func DurationWithFallback(envName string, fallback time.Duration) time.Duration {
	raw := os.Getenv(envName)
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}
