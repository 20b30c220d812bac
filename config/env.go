package config

import (
	"os"
	"strconv"
)

// GetEnvOrDefault returns the environment value for key, or defaultVal when
// unset or empty.
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// GetEnvIntOrDefault parses the environment value as an int, falling back on
// defaultVal when unset or unparseable.
func GetEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// GetEnvFloatOrDefault parses the environment value as a float64, falling
// back on defaultVal when unset or unparseable.
func GetEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}
