// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port                    string        `envconfig:"PORT" default:"8080"`
	DatabasePath            string        `envconfig:"DATABASE_PATH" default:"./shopfeed.db"`
	JWTSecret               string        `envconfig:"JWT_SECRET" default:"change-me-in-production"` // #nosec G101 -- intentional dev default
	TokenDuration           time.Duration `envconfig:"TOKEN_DURATION" default:"24h"`
	RateLimitPerMinute      int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	SocketMessagesPerSecond float64       `envconfig:"SOCKET_MESSAGES_PER_SECOND" default:"5"`
	SocketSendBuffer        int           `envconfig:"SOCKET_SEND_BUFFER" default:"32"`
	CommentMaxDepth         int           `envconfig:"COMMENT_MAX_DEPTH" default:"8"`
	CORSAllowedOrigins      []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	TrustedProxies          []string      `envconfig:"TRUSTED_PROXIES"`
	NATSURL                 string        `envconfig:"NATS_URL"`
	NATSSubjectPrefix       string        `envconfig:"NATS_SUBJECT_PREFIX" default:"shopfeed.realtime"`
	SentryDSN               string        `envconfig:"SENTRY_DSN"`
	SentryEnvironment       string        `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads an optional .env file, then configuration from the environment,
// using defaults where not set.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SocketSendBuffer <= 0 {
		return fmt.Errorf("SOCKET_SEND_BUFFER must be positive, got %d", c.SocketSendBuffer)
	}
	if c.SocketMessagesPerSecond <= 0 {
		return fmt.Errorf("SOCKET_MESSAGES_PER_SECOND must be positive, got %v", c.SocketMessagesPerSecond)
	}
	if c.CommentMaxDepth < 1 {
		return fmt.Errorf("COMMENT_MAX_DEPTH must be at least 1, got %d", c.CommentMaxDepth)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	return nil
}

// Distributed reports whether broadcasts should go through NATS.
func (c *Config) Distributed() bool {
	return c.NATSURL != ""
}
