package config

import "time"

// Store backends
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Record store calls fail fast instead of holding row locks.
const StoreOpTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = time.Hour

// Issuance limits
const (
	MaxBatchSize       = 1000
	MaxIssueAttempts   = 50
	ExpiringSoonWindow = 7 * 24 * time.Hour
)

// Admin endpoints share one attempt budget per client address.
const (
	AdminRateLimitThreshold = 30
	AdminRateLimitBucket    = time.Minute
)
