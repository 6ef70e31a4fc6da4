package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

// Config is the resolved runtime configuration for the provisioning
// service. It merges file defaults and environment overrides to support
// both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string

	StoreBaseURL        string
	StoreConsumerKey    string
	StoreConsumerSecret string

	IdentityBaseURL    string
	IdentityServiceKey string

	ProfileBaseURL  string
	ProfileUsername string
	ProfilePassword string

	WebhookSecret      string
	ServiceTokenSecret string

	ReservedProductID string
	GrantingStatuses  []string

	BcryptCost int

	FallbackRateLimitThreshold int
	FallbackRateLimitWindow    time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Store struct {
		BaseURL        string `yaml:"base_url"`
		ConsumerKey    string `yaml:"consumer_key"`
		ConsumerSecret string `yaml:"consumer_secret"`
	} `yaml:"store"`
	Identity struct {
		BaseURL    string `yaml:"base_url"`
		ServiceKey string `yaml:"service_key"`
	} `yaml:"identity"`
	Profile struct {
		BaseURL  string `yaml:"base_url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"profile"`
	Access struct {
		ReservedProductID string   `yaml:"reserved_product_id"`
		GrantingStatuses  []string `yaml:"granting_statuses"`
	} `yaml:"access"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                  "provisioning-service",
		HTTPPort:                   8080,
		GRPCPort:                   9090,
		ReservedProductID:          "i90",
		GrantingStatuses:           []string{string(domain.StatusCompleted), string(domain.StatusProcessing)},
		BcryptCost:                 12,
		FallbackRateLimitThreshold: 10,
		FallbackRateLimitWindow:    time.Minute,
		MaxDBConns:                 20,
		OutboxPollInterval:         2 * time.Second,
		OutboxBatchSize:            100,
		OutboxClaimTTL:             30 * time.Second,
		OutboxMaxRetries:           5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Store.BaseURL != "" {
			cfg.StoreBaseURL = f.Store.BaseURL
		}
		if f.Store.ConsumerKey != "" {
			cfg.StoreConsumerKey = f.Store.ConsumerKey
		}
		if f.Store.ConsumerSecret != "" {
			cfg.StoreConsumerSecret = f.Store.ConsumerSecret
		}
		if f.Identity.BaseURL != "" {
			cfg.IdentityBaseURL = f.Identity.BaseURL
		}
		if f.Identity.ServiceKey != "" {
			cfg.IdentityServiceKey = f.Identity.ServiceKey
		}
		if f.Profile.BaseURL != "" {
			cfg.ProfileBaseURL = f.Profile.BaseURL
		}
		if f.Profile.Username != "" {
			cfg.ProfileUsername = f.Profile.Username
		}
		if f.Profile.Password != "" {
			cfg.ProfilePassword = f.Profile.Password
		}
		if f.Access.ReservedProductID != "" {
			cfg.ReservedProductID = f.Access.ReservedProductID
		}
		if len(f.Access.GrantingStatuses) > 0 {
			cfg.GrantingStatuses = f.Access.GrantingStatuses
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.StoreBaseURL = envOrDefault("STORE_BASE_URL", cfg.StoreBaseURL)
	cfg.StoreConsumerKey = envOrDefault("STORE_CONSUMER_KEY", cfg.StoreConsumerKey)
	cfg.StoreConsumerSecret = envOrDefault("STORE_CONSUMER_SECRET", cfg.StoreConsumerSecret)
	cfg.IdentityBaseURL = envOrDefault("IDENTITY_BASE_URL", cfg.IdentityBaseURL)
	cfg.IdentityServiceKey = envOrDefault("IDENTITY_SERVICE_KEY", cfg.IdentityServiceKey)
	cfg.ProfileBaseURL = envOrDefault("PROFILE_BASE_URL", cfg.ProfileBaseURL)
	cfg.ProfileUsername = envOrDefault("PROFILE_USERNAME", cfg.ProfileUsername)
	cfg.ProfilePassword = envOrDefault("PROFILE_PASSWORD", cfg.ProfilePassword)
	cfg.WebhookSecret = envOrDefault("WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.ServiceTokenSecret = envOrDefault("SERVICE_TOKEN_SECRET", cfg.ServiceTokenSecret)
	cfg.ReservedProductID = envOrDefault("RESERVED_PRODUCT_ID", cfg.ReservedProductID)
	cfg.GrantingStatuses = envCSV("GRANTING_STATUSES", cfg.GrantingStatuses)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.FallbackRateLimitThreshold = envInt("FALLBACK_RATE_LIMIT_THRESHOLD", cfg.FallbackRateLimitThreshold)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.FallbackRateLimitWindow = time.Duration(envInt("FALLBACK_RATE_LIMIT_WINDOW_SECONDS", int(cfg.FallbackRateLimitWindow.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.StoreBaseURL == "" {
		return Config{}, fmt.Errorf("missing STORE_BASE_URL")
	}
	if cfg.IdentityBaseURL == "" {
		return Config{}, fmt.Errorf("missing IDENTITY_BASE_URL")
	}
	if cfg.ServiceTokenSecret == "" {
		return Config{}, fmt.Errorf("missing SERVICE_TOKEN_SECRET")
	}

	return cfg, nil
}

// AccessPolicy converts the configured product and statuses into the
// domain policy used by every qualification check.
func (c Config) AccessPolicy() domain.AccessPolicy {
	statuses := make([]domain.OrderStatus, 0, len(c.GrantingStatuses))
	for _, s := range c.GrantingStatuses {
		statuses = append(statuses, domain.OrderStatus(strings.ToLower(strings.TrimSpace(s))))
	}
	return domain.AccessPolicy{
		ProductID:        c.ReservedProductID,
		GrantingStatuses: statuses,
	}
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
