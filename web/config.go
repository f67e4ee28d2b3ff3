// ABOUTME: Environment-driven server configuration with development defaults.
// ABOUTME: Every knob is an enumerated env var; nothing else configures the server.
package web

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server needs from the environment.
type Config struct {
	LLMEndpoint string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration

	SessionTTL time.Duration

	CORSAllowedOrigins []string

	Host string
	Port int

	// SchemasDir is where servable form definitions live.
	SchemasDir string
}

// Addr returns the bind address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ConfigFromEnv reads the enumerated environment variables, applying
// development defaults for anything unset.
func ConfigFromEnv() Config {
	cfg := Config{
		LLMEndpoint:        os.Getenv("LLM_API_ENDPOINT"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		LLMModel:           envOr("LLM_MODEL_NAME", "default"),
		LLMTimeout:         time.Duration(envIntOr("LLM_REQUEST_TIMEOUT_SEC", 300)) * time.Second,
		SessionTTL:         time.Duration(envIntOr("SESSION_TIMEOUT_SEC", 1800)) * time.Second,
		CORSAllowedOrigins: splitOrigins(envOr("CORS_ALLOWED_ORIGINS", "*")),
		Host:               envOr("BACKEND_HOST", "0.0.0.0"),
		Port:               envIntOr("BACKEND_PORT", 8000),
		SchemasDir:         envOr("SCHEMAS_DIR", "schemas"),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("component=config action=invalid_int key=%s value=%q fallback=%d", key, v, fallback)
		return fallback
	}
	return n
}

func splitOrigins(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
