package utils

import (
	"log"
	"os"
	"strconv"
)

// Env reads an environment variable with a fallback.
func Env(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// EnvInt reads an integer environment variable, keeping the fallback on
// absent or malformed values.
func EnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[Config] %s=%q is not an integer, using %d", key, raw, fallback)
		return fallback
	}
	return value
}
