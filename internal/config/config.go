package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBPath   string
	LogLevel string

	// Auth
	JWTSecret    string
	JWTExpiry    time.Duration
	AuthUsername string
	AuthPassword string

	// Storage
	StorageBackend    string // "local" or "s3"
	UploadsDir        string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Upload limits
	MaxFileSize int64

	// Stream
	StreamPollInterval time.Duration
}

func Load() (*Config, error) {
	// Best effort; env vars win over the .env file.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "data/db/app.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		JWTSecret:         getEnv("JWT_SECRET_KEY", "your_default_jwt_secret"),
		AuthUsername:      getEnv("AUTH_USERNAME", "user1"),
		AuthPassword:      getEnv("AUTH_PASSWORD", "password123"),
		StorageBackend:    getEnv("STORAGE_BACKEND", "local"),
		UploadsDir:        getEnv("UPLOADS_DIR", "data/uploads"),
		S3Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:      getEnv("S3_BUCKET_NAME", "documents"),
		S3UseSSL:          getEnv("S3_USE_SSL", "false") == "true",
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4.1"),
		MaxFileSize:       10 * 1024 * 1024,
	}

	expiryMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRY", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY: %w", err)
	}
	cfg.JWTExpiry = time.Duration(expiryMinutes) * time.Minute

	pollSeconds, err := strconv.Atoi(getEnv("STREAM_POLL_INTERVAL_SECONDS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid STREAM_POLL_INTERVAL_SECONDS: %w", err)
	}
	cfg.StreamPollInterval = time.Duration(pollSeconds) * time.Second

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: must be local or s3", cfg.StorageBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
