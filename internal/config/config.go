package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// JWT (secret shared with the auth provider that issues tokens)
	JWTSecret string

	// Relay
	FallbackWebhookURL    string
	DefaultSystemPrompt   string
	WebhookTimeoutSeconds int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		FallbackWebhookURL:    getEnvOrDefault("FALLBACK_WEBHOOK_URL", "https://zaytoven.app.n8n.cloud/webhook/hd-operator"),
		DefaultSystemPrompt:   getEnvOrDefault("DEFAULT_SYSTEM_PROMPT", "You are HD-Physique AI assistant."),
		WebhookTimeoutSeconds: getEnvAsIntOrDefault("WEBHOOK_TIMEOUT_SECONDS", 60),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
