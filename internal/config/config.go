package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Docker     DockerConfig
	Slack      SlackConfig
	OAuth      OAuthConfig
	Provision  ProvisionConfig
	Verify     VerifyConfig
	Billing    BillingConfig
	Bootstrap  BootstrapConfig
	VaultKey   string
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings for the control-plane
// registry (not the per-tenant databases).
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds operator JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DockerConfig holds settings for the Docker infrastructure driver.
type DockerConfig struct {
	Host         string
	TenantImage  string // per-tenant API container image
	SeedImage    string // one-shot demo data seeder image
	CPULimit     string
	MemLimit     string
	APIURLFormat string // e.g. "https://%s.mechanicbuddy.io"
}

// SlackConfig holds ops notification settings. Empty token disables Slack.
type SlackConfig struct {
	BotToken   string
	OpsChannel string
}

// OAuthConfig holds operator SSO settings. Empty client IDs disable a provider.
type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	RedirectURL        string
}

// ProvisionConfig holds orchestrator policy values.
type ProvisionConfig struct {
	Timeout      time.Duration // hard ceiling on one provisioning run
	ReapAfter    time.Duration // watchdog reclaims provisioning rows older than this
	ReapInterval time.Duration
	DemoTTL      time.Duration // demo tenant lifetime
}

// VerifyConfig holds domain verification policy values.
type VerifyConfig struct {
	TokenTTL     time.Duration
	PollInterval time.Duration
	PollAttempts int
}

// BootstrapConfig seeds the first admin operator at startup. An empty
// email disables bootstrapping.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string //nolint:gosec // G117: bootstrap credential config
	AdminName     string
}

// BillingConfig holds reconciliation policy values.
type BillingConfig struct {
	GracePeriod       time.Duration // payment_failed age before suspension
	ReconcileInterval time.Duration
	WebhookSecret     string //nolint:gosec // G117: webhook shared secret config
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, vault key, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("MB_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("MB_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("MB_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("MB_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshTTL, err := getEnvDuration("MB_JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("MB_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("MB_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	provisionTimeout, err := getEnvDuration("MB_PROVISION_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	reapAfter, err := getEnvDuration("MB_PROVISION_REAP", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	reapInterval, err := getEnvDuration("MB_PROVISION_REAP_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	demoTTL, err := getEnvDuration("MB_DEMO_TTL", 14*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	verifyTokenTTL, err := getEnvDuration("MB_VERIFY_TOKEN_TTL", 48*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	verifyPollInterval, err := getEnvDuration("MB_VERIFY_POLL_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	verifyPollAttempts, err := getEnvInt("MB_VERIFY_POLL_ATTEMPTS", 30)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	billingGrace, err := getEnvDuration("MB_BILLING_GRACE", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	reconcileInterval, err := getEnvDuration("MB_RECONCILE_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("MB_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("MB_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("MB_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("MB_DB_USER", "mechanicbuddy"),
			Password: getEnv("MB_DB_PASSWORD", ""),
			DBName:   getEnv("MB_DB_NAME", "mb_controlplane"),
			SSLMode:  getEnv("MB_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("MB_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("MB_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:     getEnv("MB_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("MB_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Docker: DockerConfig{
			Host:         getEnv("MB_DOCKER_HOST", "unix:///var/run/docker.sock"),
			TenantImage:  getEnv("MB_TENANT_IMAGE", "ghcr.io/mechanicbuddy/tenant-api:latest"),
			SeedImage:    getEnv("MB_SEED_IMAGE", "ghcr.io/mechanicbuddy/demo-seeder:latest"),
			CPULimit:     getEnv("MB_TENANT_CPU_LIMIT", "2"),
			MemLimit:     getEnv("MB_TENANT_MEM_LIMIT", "2g"),
			APIURLFormat: getEnv("MB_API_URL_FORMAT", "https://%s.mechanicbuddy.io"),
		},
		Slack: SlackConfig{
			BotToken:   getEnv("MB_SLACK_BOT_TOKEN", ""),
			OpsChannel: getEnv("MB_SLACK_OPS_CHANNEL", "#tenant-ops"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("MB_OAUTH_GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("MB_OAUTH_GOOGLE_CLIENT_SECRET", ""),
			GitHubClientID:     getEnv("MB_OAUTH_GITHUB_CLIENT_ID", ""),
			GitHubClientSecret: getEnv("MB_OAUTH_GITHUB_CLIENT_SECRET", ""),
			RedirectURL:        getEnv("MB_OAUTH_REDIRECT_URL", ""),
		},
		Provision: ProvisionConfig{
			Timeout:      provisionTimeout,
			ReapAfter:    reapAfter,
			ReapInterval: reapInterval,
			DemoTTL:      demoTTL,
		},
		Verify: VerifyConfig{
			TokenTTL:     verifyTokenTTL,
			PollInterval: verifyPollInterval,
			PollAttempts: verifyPollAttempts,
		},
		Billing: BillingConfig{
			GracePeriod:       billingGrace,
			ReconcileInterval: reconcileInterval,
			WebhookSecret:     getEnv("MB_BILLING_WEBHOOK_SECRET", ""),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    getEnv("MB_BOOTSTRAP_ADMIN_EMAIL", ""),
			AdminPassword: getEnv("MB_BOOTSTRAP_ADMIN_PASSWORD", ""),
			AdminName:     getEnv("MB_BOOTSTRAP_ADMIN_NAME", "Administrator"),
		},
		VaultKey:   getEnv("MB_VAULT_KEY", ""),
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("MB_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("MB_JWT_SECRET must be at least 32 characters")
	}

	// Vault key encrypts tenant connection strings at rest.
	if c.VaultKey == "" {
		return errors.New("MB_VAULT_KEY is required")
	}
	if len(c.VaultKey) != 32 {
		return errors.New("MB_VAULT_KEY must be exactly 32 bytes")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("MB_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("MB_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("MB_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("MB_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("MB_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.Provision.Timeout <= 0 {
		return fmt.Errorf("MB_PROVISION_TIMEOUT must be positive, got %s", c.Provision.Timeout)
	}
	if c.Provision.ReapAfter < c.Provision.Timeout {
		return fmt.Errorf("MB_PROVISION_REAP (%s) must not be shorter than MB_PROVISION_TIMEOUT (%s)",
			c.Provision.ReapAfter, c.Provision.Timeout)
	}
	if c.Verify.PollInterval <= 0 {
		return fmt.Errorf("MB_VERIFY_POLL_INTERVAL must be positive, got %s", c.Verify.PollInterval)
	}
	if c.Verify.PollAttempts < 1 {
		return fmt.Errorf("MB_VERIFY_POLL_ATTEMPTS must be >= 1, got %d", c.Verify.PollAttempts)
	}
	if c.Billing.GracePeriod <= 0 {
		return fmt.Errorf("MB_BILLING_GRACE must be positive, got %s", c.Billing.GracePeriod)
	}
	if c.Bootstrap.AdminEmail != "" && len(c.Bootstrap.AdminPassword) < 12 {
		return errors.New("MB_BOOTSTRAP_ADMIN_PASSWORD must be at least 12 characters when MB_BOOTSTRAP_ADMIN_EMAIL is set")
	}

	return nil
}

// DSN returns the control-plane PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
