package envutil

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// GetStringEnv reads a string environment variable with a default fallback.
func GetStringEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// GetIntEnv reads an integer environment variable with a default fallback.
// Logs a warning if the value is invalid.
func GetIntEnv(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer value for environment variable",
			"key", key,
			"value", val,
			"default", defaultValue)
		return defaultValue
	}

	return intVal
}

// GetDurationEnv reads a duration environment variable (Go duration syntax,
// e.g. "90s", "5m") with a default fallback. Logs a warning if the value is
// invalid.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration value for environment variable",
			"key", key,
			"value", val,
			"default", defaultValue)
		return defaultValue
	}

	return d
}
