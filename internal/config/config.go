// Package config manages environment variables.
//
// It reads variables from the `.env` file,
// loads them into structured Go types (struct), and
// validates that required values are present so they
// can be reused across the application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (e.g. observability, queue).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists, it gets loaded into the
	// process env before any code below reads env vars.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

/*
	Env vars are read using the prefix CAMPAIGN_.
	Keys are lowercased with the prefix removed, and nested struct fields are
	addressed with "." (e.g. CAMPAIGN_SERVER.PORT -> server.port -> Config.Server.Port).
*/

// EnvPrefix is the prefix every application env var must carry.
const EnvPrefix = "CAMPAIGN_"

// Config is the root configuration object for the application.
//
// The `koanf:"..."` tags specify where koanf maps values from and the
// `validate:"..."` tags are enforced by go-playground/validator.
//
// Observability and Queue are pointers because they are optional. If not
// provided, defaults are injected at load time.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Integration   IntegrationConfig    `koanf:"integration" validate:"required"`
	Queue         *QueueConfig         `koanf:"queue"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
// Used to tag logs/traces and switch behavior based on env.
type Primary struct {
	Env     string `koanf:"env" validate:"required"`
	AppName string `koanf:"app_name"`
}

// ServerConfig groups settings for the HTTP server runtime and its request pipeline.
//
// ReadTimeout, WriteTimeout and IdleTimeout are seconds. RequestTimeout is a
// duration string ("30s") used by the pipeline's timeout guard.
type ServerConfig struct {
	Port               string        `koanf:"port" validate:"required"`
	ReadTimeout        int           `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int           `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int           `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins" validate:"required"`
	BodyLimit          string        `koanf:"body_limit"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	// HPPWhitelist lists query keys that may legitimately repeat (e.g. ?date=a&date=b).
	HPPWhitelist          []string `koanf:"hpp_whitelist"`
	ContentSecurityPolicy string   `koanf:"content_security_policy"`
	RateLimitPerSecond    float64  `koanf:"rate_limit_per_second"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig contains Redis connection details.
// Address is typically "host:port".
type RedisConfig struct {
	Address  string `koanf:"address" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AuthConfig stores authentication settings.
//
// SecretKey signs and verifies the HS256 tokens issued by /api/v1/auth.
// When ClerkSecretKey is set, Clerk session tokens are accepted as well.
type AuthConfig struct {
	SecretKey      string        `koanf:"secret_key" validate:"required,min=32"`
	Issuer         string        `koanf:"issuer"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	ClerkSecretKey string        `koanf:"clerk_secret_key"`
}

// ClerkEnabled reports whether Clerk session tokens are accepted.
func (a AuthConfig) ClerkEnabled() bool {
	return a.ClerkSecretKey != ""
}

// IntegrationConfig holds credentials for third-party services.
//
// The payment fields are checked again when the payment client is built, so a
// missing host or secret stops the process at startup rather than per request.
type IntegrationConfig struct {
	ResendAPIKey       string `koanf:"resend_api_key" validate:"required"`
	EmailFrom          string `koanf:"email_from"`
	PaymentHost        string `koanf:"payment_host" validate:"required,url"`
	PaymentSecretKey   string `koanf:"payment_secret_key" validate:"required"`
	PaymentCallbackURL string `koanf:"payment_callback_url"`
}

// LoadConfig loads configuration from environment variables, unmarshals it into
// Config, validates it, applies defaults and returns the result. Reporting a
// bad configuration is left to the caller.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load initial env variables: %w", err)
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	if err := mainConfig.finalize(); err != nil {
		return nil, err
	}

	return mainConfig, nil
}

// finalize validates struct tags, injects defaults for optional blocks and
// runs the custom validators.
func (c *Config) finalize() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	c.applyDefaults()

	// Force service name and environment so tracing/logging see consistent naming.
	c.Observability.ServiceName = c.Primary.AppName
	c.Observability.Environment = c.Primary.Env

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("invalid queue config: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Primary.AppName == "" {
		c.Primary.AppName = "campaign-gateway"
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "50M"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(c.Server.HPPWhitelist) == 0 {
		c.Server.HPPWhitelist = []string{"date"}
	}
	if c.Server.ContentSecurityPolicy == "" {
		c.Server.ContentSecurityPolicy = "default-src 'self'; script-src 'self' https://cdn.jsdelivr.net; style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net"
	}
	if c.Server.RateLimitPerSecond <= 0 {
		c.Server.RateLimitPerSecond = 10
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = c.Primary.AppName
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}

	if c.Integration.EmailFrom == "" {
		c.Integration.EmailFrom = "Campaigns <onboarding@resend.dev>"
	}

	if c.Queue == nil {
		c.Queue = DefaultQueueConfig()
	}
	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}
}

// IsLocal reports whether the app runs on a developer machine.
func (c *Config) IsLocal() bool {
	return c.Primary.Env == "local"
}
