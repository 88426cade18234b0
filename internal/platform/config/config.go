package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Server captures ingestion server configuration.
type Server struct {
	Addr            string
	Store           string
	DatabaseURL     string
	JWTSigningKey   string
	JWTIssuer       string
	LogLevel        string
	ShutdownTimeout time.Duration
	// IngestRateLimit caps batch posts per client IP per minute. Zero disables.
	IngestRateLimit int
	Redis           RedisConfig
}

// RedisConfig configures the optional count cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CountTTL     time.Duration
}

// RequireAuth reports whether ingestion and reads need a bearer token.
func (s Server) RequireAuth() bool {
	return s.JWTSigningKey != ""
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:            getenv("AUDIT_ADDR", ":8080"),
		Store:           strings.ToLower(getenv("AUDIT_STORE", StoreMemory)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSigningKey:   os.Getenv("AUDIT_JWT_SIGNING_KEY"),
		JWTIssuer:       getenv("AUDIT_JWT_ISSUER", "voyage"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		ShutdownTimeout: 10 * time.Second,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			CountTTL:     time.Minute,
		},
	}

	var err error
	if cfg.ShutdownTimeout, err = duration("AUDIT_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Server{}, err
	}
	if cfg.Redis.CountTTL, err = duration("REDIS_COUNT_TTL", cfg.Redis.CountTTL); err != nil {
		return Server{}, err
	}
	if v := os.Getenv("REDIS_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Server{}, fmt.Errorf("REDIS_POOL_SIZE: invalid value %q", v)
		}
		cfg.Redis.PoolSize = n
	}
	if v := os.Getenv("AUDIT_INGEST_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Server{}, fmt.Errorf("AUDIT_INGEST_RATE_LIMIT: invalid value %q", v)
		}
		cfg.IngestRateLimit = n
	}

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required when AUDIT_STORE=%s", StorePostgres)
		}
	default:
		return Server{}, fmt.Errorf("AUDIT_STORE: unknown backend %q", cfg.Store)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
