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

	// Redis
	RedisURL string

	// Auth
	JWTSecret     string
	SessionSecret string

	// Model vendors
	XAIAPIKey       string
	AnthropicAPIKey string
	DeepSeekAPIKey  string
	GeminiAPIKey    string

	// Object storage (S3-compatible)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	// Workers
	PublishWorkers int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "4000"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),

		JWTSecret:     mustGetEnv("JWT_SECRET"),
		SessionSecret: mustGetEnv("SESSION_SECRET"),

		XAIAPIKey:       getEnvOrDefault("XAI_API_KEY", ""),
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", ""),
		GeminiAPIKey:    getEnvOrDefault("GEMINI_API_KEY", ""),

		StorageEndpoint:  mustGetEnv("STORAGE_ENDPOINT"),
		StorageAccessKey: mustGetEnv("STORAGE_ACCESS_KEY"),
		StorageSecretKey: mustGetEnv("STORAGE_SECRET_KEY"),
		StorageBucket:    getEnvOrDefault("STORAGE_BUCKET", "neoplay-games"),
		StorageUseSSL:    getEnvAsBoolOrDefault("STORAGE_USE_SSL", true),

		PublishWorkers: getEnvAsIntOrDefault("PUBLISH_WORKERS", 2),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
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

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
