package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string        // POPKIT_DATABASE_URL (required)
	HTTPAddr    string        // POPKIT_HTTP_ADDR (default ":8080")
	NATSURL     string        // POPKIT_NATS_URL (optional, empty = no bus fan-out)
	TokenSecret string        // POPKIT_TOKEN_SECRET (required)
	TokenTTL    time.Duration // POPKIT_TOKEN_TTL (default 5m)

	// Event-log export settings
	SyncInterval   time.Duration // POPKIT_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // POPKIT_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // POPKIT_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // POPKIT_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // POPKIT_SYNC_S3_KEY (default "popkit/events.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("POPKIT_DATABASE_URL"),
		HTTPAddr:       envOrDefault("POPKIT_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("POPKIT_NATS_URL"),
		TokenSecret:    os.Getenv("POPKIT_TOKEN_SECRET"),
		SyncS3Bucket:   os.Getenv("POPKIT_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("POPKIT_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("POPKIT_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("POPKIT_SYNC_S3_KEY", "popkit/events.jsonl"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("POPKIT_DATABASE_URL is required")
	}
	if c.TokenSecret == "" {
		return nil, fmt.Errorf("POPKIT_TOKEN_SECRET is required")
	}

	ttlStr := envOrDefault("POPKIT_TOKEN_TTL", "5m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("POPKIT_TOKEN_TTL: %w", err)
	}
	c.TokenTTL = ttl

	intervalStr := envOrDefault("POPKIT_SYNC_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("POPKIT_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
