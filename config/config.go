package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/psicare/manager-api/internal/email"
	"github.com/psicare/manager-api/internal/middleware"
	"github.com/psicare/manager-api/internal/repository/postgres"
	"github.com/psicare/manager-api/internal/service/document"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/messaging/redis"
	"github.com/psicare/manager-api/pkg/worker"
)

// EnvPrefix namespaces the secrets read from the environment.
const EnvPrefix = "PSICARE"

const minJWTSecretLen = 16

var (
	ErrMissingDatabaseURL = errors.New("database url is required (PSICARE_DATABASE_URL)")
	ErrMissingJWTSecret   = errors.New("jwt secret is required (PSICARE_JWT_SECRET)")
)

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"-"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"-"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"-"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ClinicConfig describes the letterhead printed on documents and where the
// public validation page lives.
type ClinicConfig struct {
	Letterhead document.Letterhead `mapstructure:"letterhead"`
	Timezone   string              `mapstructure:"timezone"`
	PublicURL  string              `mapstructure:"public_url"`
	QRService  string              `mapstructure:"qr_service"`
}

type DocumentsConfig struct {
	ValidationCacheTTL time.Duration `mapstructure:"validation_cache_ttl"`
	PublicCacheSeconds int           `mapstructure:"public_cache_seconds"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type MonitoringConfig struct {
	Namespace   string `mapstructure:"namespace"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	Server     ServerConfig          `mapstructure:"server"`
	Database   DatabaseConfig        `mapstructure:"database"`
	JWT        JWTConfig             `mapstructure:"jwt"`
	Redis      RedisConfig           `mapstructure:"redis"`
	SMTP       email.Config          `mapstructure:"-"`
	RateLimit  RateLimitConfig       `mapstructure:"rate_limit"`
	CORS       middleware.CORSConfig `mapstructure:"cors"`
	Clinic     ClinicConfig          `mapstructure:"clinic"`
	Documents  DocumentsConfig       `mapstructure:"documents"`
	Outbox     OutboxConfig          `mapstructure:"outbox"`
	Monitoring MonitoringConfig      `mapstructure:"monitoring"`
	Log        LogConfig             `mapstructure:"log"`
}

// Secrets only ever come from the environment.
type Secrets struct {
	DatabaseURL  string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	RedisURL     string `envconfig:"REDIS_URL"`
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("jwt.ttl", "12h")

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	cors := middleware.DefaultCORSConfig()
	v.SetDefault("cors.allow_origins", cors.AllowOrigins)
	v.SetDefault("cors.allow_methods", cors.AllowMethods)
	v.SetDefault("cors.allow_headers", cors.AllowHeaders)
	v.SetDefault("cors.expose_headers", cors.ExposeHeaders)
	v.SetDefault("cors.allow_credentials", cors.AllowCredentials)
	v.SetDefault("cors.max_age", cors.MaxAge)

	v.SetDefault("clinic.letterhead.name", "Psicare")
	v.SetDefault("clinic.letterhead.suffix", "Manager")
	v.SetDefault("clinic.timezone", "America/Sao_Paulo")
	v.SetDefault("clinic.public_url", "http://localhost:8080/")
	v.SetDefault("clinic.qr_service", "https://quickchart.io/qr")

	v.SetDefault("documents.validation_cache_ttl", "10m")
	v.SetDefault("documents.public_cache_seconds", 300)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", "5s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "2s")
	v.SetDefault("outbox.retention", "168h")
	v.SetDefault("outbox.cleanup_interval", "1h")

	v.SetDefault("monitoring.namespace", "psicare")
	v.SetDefault("monitoring.metrics_path", "/metrics")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from the usual locations, or from path when it
// is not empty, then the secrets from the environment. A missing config file
// falls back to defaults; missing secrets do not.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(EnvPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s Secrets) {
	c.Database.URL = s.DatabaseURL
	c.JWT.Secret = s.JWTSecret
	c.Redis.URL = s.RedisURL
	c.SMTP = email.Config{
		Host:     s.SMTPHost,
		Port:     s.SMTPPort,
		Username: s.SMTPUsername,
		Password: s.SMTPPassword,
		From:     s.SMTPFrom,
	}
}

// Validate refuses to start without credentials or with settings the
// services cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return ErrMissingDatabaseURL
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWT.Secret) < minJWTSecretLen {
		return fmt.Errorf("jwt secret must have at least %d characters", minJWTSecretLen)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		return errors.New("outbox batch size must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid clinic timezone %q: %w", c.Clinic.Timezone, err)
	}
	for name, raw := range map[string]string{"public_url": c.Clinic.PublicURL, "qr_service": c.Clinic.QRService} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("clinic.%s must be an absolute URL", name)
		}
	}
	return nil
}

// Location is the clinic's time zone, used for "today" and printed times.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Clinic.Timezone)
}

// QRHost is the scheme and host of the QR service.
func (c *Config) QRHost() string {
	u, err := url.Parse(c.Clinic.QRService)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (c *Config) ToDBConfig() postgres.DBConfig {
	return postgres.DBConfig{
		URL:             c.Database.URL,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

func (c *Config) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.Redis.URL,
		MaxRetries:   c.Redis.MaxRetries,
		RetryBackoff: c.Redis.RetryBackoff,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
	}
}

func (c *Config) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.Outbox.BatchSize,
		PollInterval:  c.Outbox.PollInterval,
		RetryAttempts: c.Outbox.RetryAttempts,
		RetryDelay:    c.Outbox.RetryDelay,
	}
}

func (c *Config) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
	}
}
