package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const DefaultMasterKey = "default-dev-key-change-in-production"

var knownWeakSecrets = []string{
	DefaultMasterKey, "change-me", "secret", "admin", "password", "carmaster",
}

type Config struct {
	Port                     int    `env:"PORT" envDefault:"8080"`
	StoreBackend             string `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL              string `env:"DATABASE_URL"`
	RedisURL                 string `env:"REDIS_URL"`
	MasterKey                string `env:"CARMASTER_MASTER_KEY" envDefault:"default-dev-key-change-in-production"`
	CodePrefix               string `env:"CODE_PREFIX" envDefault:"CARMASTER"`
	RateLimitThreshold       int    `env:"RATE_LIMIT_THRESHOLD" envDefault:"5"`
	RateLimitBucketSeconds   int    `env:"RATE_LIMIT_BUCKET_SECONDS" envDefault:"10"`
	AuditRetentionDays       int    `env:"AUDIT_RETENTION_DAYS" envDefault:"365"`
	AuditQueueSize           int    `env:"AUDIT_QUEUE_SIZE" envDefault:"256"`
	ExpiryRevokesActivations bool   `env:"EXPIRY_REVOKES_ACTIVATIONS" envDefault:"false"`
	AdminTokenHash           string `env:"ADMIN_TOKEN_HASH"`
	CORSAllowedOrigin        string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) RateLimitBucket() time.Duration {
	return time.Duration(c.RateLimitBucketSeconds) * time.Second
}

func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) UsesMemoryStore() bool {
	return c.StoreBackend == StoreBackendMemory
}

func (c *Config) Validate(isProduction bool) error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	case StoreBackendMemory:
		if isProduction {
			return fmt.Errorf("STORE_BACKEND=%s is not durable and cannot be used in production", StoreBackendMemory)
		}
		log.Warn().Msg("STORE_BACKEND=memory: redemptions are lost on restart")
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (expected %s or %s)", c.StoreBackend, StoreBackendPostgres, StoreBackendMemory)
	}

	if c.CodePrefix == "" || strings.Contains(c.CodePrefix, "-") {
		return fmt.Errorf("CODE_PREFIX must be non-empty and must not contain '-'")
	}
	if c.RateLimitThreshold <= 0 {
		return fmt.Errorf("RATE_LIMIT_THRESHOLD must be positive")
	}
	if c.RateLimitBucketSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_BUCKET_SECONDS must be positive")
	}

	if c.AdminTokenHash != "" {
		if !strings.HasPrefix(c.AdminTokenHash, "$2a$") &&
			!strings.HasPrefix(c.AdminTokenHash, "$2b$") &&
			!strings.HasPrefix(c.AdminTokenHash, "$2y$") {
			return fmt.Errorf("ADMIN_TOKEN_HASH must be a bcrypt hash (generate with: go run scripts/hash-token.go <token>)")
		}
	}

	if isProduction {
		if err := validateSecret("CARMASTER_MASTER_KEY", c.MasterKey); err != nil {
			return err
		}
		if c.RedisURL == "" {
			log.Warn().Msg("REDIS_URL is empty in production: rate limiting is per-instance only")
		} else if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.AdminTokenHash == "" {
			log.Warn().Msg("ADMIN_TOKEN_HASH is empty in production: admin endpoints are disabled")
		}
	} else if c.MasterKey == DefaultMasterKey {
		log.Warn().Msg("CARMASTER_MASTER_KEY is the development default: codes issued now will not verify in production")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
