package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every externally supplied setting for the frontend process.
// It is built once at startup and handed to constructors explicitly; nothing
// in the codebase reads the environment after Load returns.
type Config struct {
	// Hosted platform (row CRUD + change feed)
	PlatformURL string
	PlatformKey string
	UserID      string

	// S3-compatible document bucket
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	// Realtime tuning
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration

	// Upload limits
	MaxUploadBytes int64

	// Local UI surface
	Port string

	AppEnv string
}

func Load() (Config, error) {
	cfg := Config{
		PlatformURL:      os.Getenv("PLATFORM_URL"),
		PlatformKey:      os.Getenv("PLATFORM_ANON_KEY"),
		UserID:           envOrDefault("PLATFORM_USER_ID", "anonymous"),
		StorageEndpoint:  os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey: os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:    envOrDefault("STORAGE_BUCKET", "documents"),
		StorageUseSSL:    os.Getenv("STORAGE_USE_SSL") == "true",
		Port:             envOrDefault("PORT", "8080"),
		AppEnv:           envOrDefault("APP_ENV", "dev"),
	}

	if cfg.PlatformURL == "" {
		return Config{}, fmt.Errorf("PLATFORM_URL is required")
	}
	if cfg.PlatformKey == "" {
		return Config{}, fmt.Errorf("PLATFORM_ANON_KEY is required")
	}
	if cfg.StorageEndpoint == "" {
		return Config{}, fmt.Errorf("STORAGE_ENDPOINT is required")
	}

	reconnectSeconds, err := parseIntEnv("REALTIME_RECONNECT_SECONDS", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse REALTIME_RECONNECT_SECONDS: %w", err)
	}
	cfg.ReconnectDelay = time.Duration(reconnectSeconds) * time.Second

	heartbeatSeconds, err := parseIntEnv("REALTIME_HEARTBEAT_SECONDS", 30)
	if err != nil {
		return Config{}, fmt.Errorf("parse REALTIME_HEARTBEAT_SECONDS: %w", err)
	}
	cfg.HeartbeatInterval = time.Duration(heartbeatSeconds) * time.Second

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}
