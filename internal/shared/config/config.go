package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when no provider API key is configured.
var ErrMissingCredential = errors.New("provider api key is not configured: set GOOGLE_GENAI_API_KEY")

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Generation GenerationConfig `mapstructure:"generation"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// RedisConfig holds Redis configuration. Redis is optional: without it jobs
// are tracked in memory and requests are not rate limited.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	JobTTL   time.Duration `mapstructure:"job_ttl"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	// Keep-alive settings
	KeepAlive time.Duration `mapstructure:"keep_alive"`

	// UserAgent is sent on every outbound request.
	UserAgent string `mapstructure:"user_agent"`
}

// RateLimitConfig holds rate limiting configuration for submission routes.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// ProviderConfig holds the video generation provider settings.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`

	// ArtifactHosts are extra hosts generated videos may be downloaded from.
	ArtifactHosts []string `mapstructure:"artifact_hosts"`

	// Circuit breaker
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	BreakerInterval  time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

// Credential returns the provider API key.
func (c *ProviderConfig) Credential() (string, error) {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}

// GenerationConfig holds job polling settings.
type GenerationConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
	MaxArtifactBytes int64         `mapstructure:"max_artifact_bytes"`
}

// StorageConfig holds object storage configuration for archived artifacts.
// Archiving is disabled when Bucket is empty.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	PublicURL       string `mapstructure:"public_url"`
}

// Enabled reports whether artifacts should be archived.
func (c *StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom loads configuration into v. Callers may bind command line flags on
// v beforehand; bound flags take precedence over file and environment values.
func LoadFrom(v *viper.Viper) (*Config, error) {
	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/videogen")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	// VIDEOGEN_PROVIDER_API_KEY, VIDEOGEN_REDIS_ADDRESS, ...
	v.SetEnvPrefix("VIDEOGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("provider.api_key", "VIDEOGEN_PROVIDER_API_KEY", "GOOGLE_GENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
// A missing API key is not an error here; it is reported per request.
func (c *Config) Validate() error {
	if c.Generation.PollInterval <= 0 {
		return fmt.Errorf("generation.poll_interval must be positive, got %s", c.Generation.PollInterval)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive, got %s", c.Generation.Timeout)
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be positive, got %d", c.RateLimit.Limit)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 150<<20)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.job_ttl", time.Hour)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 30*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 0)
	v.SetDefault("http_client.keep_alive", 30*time.Second)
	v.SetDefault("http_client.user_agent", "videogen/1.0")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window", time.Minute)

	// Provider defaults
	v.SetDefault("provider.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("provider.model", "veo-3.1-generate-preview")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.artifact_hosts", []string{})
	v.SetDefault("provider.failure_threshold", 5)
	v.SetDefault("provider.breaker_interval", time.Minute)
	v.SetDefault("provider.breaker_timeout", 30*time.Second)

	// Generation defaults
	v.SetDefault("generation.poll_interval", 10*time.Second)
	v.SetDefault("generation.timeout", 10*time.Minute)
	v.SetDefault("generation.query_timeout", 30*time.Second)
	v.SetDefault("generation.max_artifact_bytes", 512<<20)

	// Storage defaults
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "videos/")
	v.SetDefault("storage.public_url", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
