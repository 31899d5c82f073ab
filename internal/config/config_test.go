package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	vars := map[string]string{
		"CAMPAIGN_PRIMARY.ENV":                      "local",
		"CAMPAIGN_SERVER.PORT":                      "8080",
		"CAMPAIGN_SERVER.READ_TIMEOUT":              "30",
		"CAMPAIGN_SERVER.WRITE_TIMEOUT":             "30",
		"CAMPAIGN_SERVER.IDLE_TIMEOUT":              "60",
		"CAMPAIGN_SERVER.CORS_ALLOWED_ORIGINS":      "http://localhost:3000",
		"CAMPAIGN_DATABASE.HOST":                    "localhost",
		"CAMPAIGN_DATABASE.PORT":                    "5432",
		"CAMPAIGN_DATABASE.USER":                    "postgres",
		"CAMPAIGN_DATABASE.PASSWORD":                "postgres",
		"CAMPAIGN_DATABASE.NAME":                    "campaigns",
		"CAMPAIGN_DATABASE.SSL_MODE":                "disable",
		"CAMPAIGN_DATABASE.MAX_OPEN_CONNS":          "25",
		"CAMPAIGN_DATABASE.MAX_IDLE_CONNS":          "5",
		"CAMPAIGN_DATABASE.CONN_MAX_LIFETIME":       "300",
		"CAMPAIGN_DATABASE.CONN_MAX_IDLE_TIME":      "60",
		"CAMPAIGN_REDIS.ADDRESS":                    "localhost:6379",
		"CAMPAIGN_AUTH.SECRET_KEY":                  "0123456789abcdef0123456789abcdef",
		"CAMPAIGN_INTEGRATION.RESEND_API_KEY":       "re_test",
		"CAMPAIGN_INTEGRATION.PAYMENT_HOST":         "https://api.paystack.co",
		"CAMPAIGN_INTEGRATION.PAYMENT_SECRET_KEY":   "sk_test",
		"CAMPAIGN_INTEGRATION.PAYMENT_CALLBACK_URL": "http://localhost:3000/callback",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func validConfig() *Config {
	return &Config{
		Primary: Primary{Env: "production", AppName: "gateway"},
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       30,
			IdleTimeout:        60,
			CORSAllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "db", SSLMode: "disable",
			MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: 300, ConnMaxIdleTime: 60,
		},
		Redis:       RedisConfig{Address: "localhost:6379"},
		Auth:        AuthConfig{SecretKey: "0123456789abcdef0123456789abcdef"},
		Integration: IntegrationConfig{ResendAPIKey: "re", PaymentHost: "https://api.paystack.co", PaymentSecretKey: "sk"},
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSAllowedOrigins)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "campaign-gateway", cfg.Primary.AppName)
	assert.Equal(t, "campaign-gateway", cfg.Auth.Issuer)
	assert.False(t, cfg.Auth.ClerkEnabled())

	require.NotNil(t, cfg.Queue)
	assert.Equal(t, "email", cfg.Queue.Name)
	require.NotNil(t, cfg.Observability)
	assert.Equal(t, "local", cfg.Observability.Environment)
}

func TestLoadConfig_DurationsAndOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CAMPAIGN_SERVER.REQUEST_TIMEOUT", "5s")
	t.Setenv("CAMPAIGN_SERVER.BODY_LIMIT", "1M")
	t.Setenv("CAMPAIGN_AUTH.TOKEN_TTL", "2h")
	t.Setenv("CAMPAIGN_AUTH.CLERK_SECRET_KEY", "sk_clerk")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "1M", cfg.Server.BodyLimit)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.ClerkEnabled())
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CAMPAIGN_AUTH.SECRET_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestFinalize_AppliesDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.finalize())

	assert.Equal(t, "50M", cfg.Server.BodyLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"date"}, cfg.Server.HPPWhitelist)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "gateway", cfg.Auth.Issuer)
	assert.NotEmpty(t, cfg.Integration.EmailFrom)

	assert.Equal(t, "gateway", cfg.Observability.ServiceName)
	assert.Equal(t, "production", cfg.Observability.Environment)
	assert.Equal(t, "info", cfg.Observability.GetLogLevel())
	assert.True(t, cfg.Observability.HealthCheckEnabled("database"))
	assert.False(t, cfg.Observability.HealthCheckEnabled("smtp"))
}

func TestFinalize_ShortSecretRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.SecretKey = "short"

	require.Error(t, cfg.finalize())
}

func TestFinalize_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Observability = DefaultObservabilityConfig()
	cfg.Observability.Logging.Level = "verbose"

	err := cfg.finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid logging level")
}

func TestQueueConfig_Validate(t *testing.T) {
	q := &QueueConfig{MaxRetry: 0}
	require.NoError(t, q.Validate())
	assert.Equal(t, "email", q.Name)
	assert.Equal(t, 10, q.Concurrency)
	assert.Equal(t, 0, q.MaxRetry)
	assert.Equal(t, 24*time.Hour, q.DedupTTL)

	q = &QueueConfig{MaxRetry: -1}
	assert.Error(t, q.Validate())
}

func TestObservability_GetLogLevelByEnvironment(t *testing.T) {
	o := DefaultObservabilityConfig()
	o.Logging.Level = ""
	o.Environment = "staging"
	assert.Equal(t, "debug", o.GetLogLevel())

	o.Environment = "production"
	assert.Equal(t, "info", o.GetLogLevel())

	o.HealthChecks.Enabled = false
	assert.False(t, o.HealthCheckEnabled("database"))
}
