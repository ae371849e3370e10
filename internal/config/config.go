// Package config reads runtime configuration from the environment. A .env
// file is honoured when present so local development does not need exported
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file when one exists. Deployed environments set
// variables directly; a missing file is not an error.
func Load() {
	if err := godotenv.Load(); err == nil {
		log.Println("[Config] Loaded .env file")
	}
}

// Get returns the value of key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// MustGet returns the value of key or exits the process.
func MustGet(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("[Config] %s is required", key)
	}
	return value
}

// GetInt returns the integer value of key, or fallback when unset or
// unparseable.
func GetInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[Config] %s: invalid integer %q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

// GetDuration returns the duration value of key, or fallback when unset or
// unparseable.
func GetDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[Config] %s: invalid duration %q, using %s", key, value, fallback)
		return fallback
	}
	return d
}
