package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sender   SenderConfig   `mapstructure:"sender"`
	Provider ProviderConfig `mapstructure:"provider"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	History  HistoryConfig  `mapstructure:"history"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SenderConfig holds the verified From address injected into every message.
type SenderConfig struct {
	Address string `mapstructure:"address"`
}

// ProviderConfig holds Azure Communication Services connection settings.
type ProviderConfig struct {
	ConnectionString string        `mapstructure:"connection_string"`
	APIVersion       string        `mapstructure:"api_version"`
	Timeout          time.Duration `mapstructure:"timeout"`
	// HandleTTL bounds how long an issued messageId stays resolvable.
	// Zero leaves it to the provider's own retention window.
	HandleTTL time.Duration `mapstructure:"handle_ttl"`
	// HandleSigningKey overrides the key derived from the access key.
	HandleSigningKey string `mapstructure:"handle_signing_key"`
}

// APIConfig holds endpoint behaviour switches.
type APIConfig struct {
	// LegacyErrors collapses every failure into 500 {"error":"Internal Server error"}.
	LegacyErrors bool  `mapstructure:"legacy_errors"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// HistoryConfig selects the sent-message history backend.
type HistoryConfig struct {
	// Type is one of: none, memory, redis, postgres.
	Type           string        `mapstructure:"type"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	RedisPrefix    string        `mapstructure:"redis_prefix"`
	DatabaseURL    string        `mapstructure:"database_url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxEntries     int           `mapstructure:"max_entries"`
}

// ArchiveConfig selects where accepted provider messages are archived.
type ArchiveConfig struct {
	// Type is one of: none, local, s3.
	Type       string `mapstructure:"type"`
	Path       string `mapstructure:"path"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// legacyEnv maps the bare environment variables understood by earlier
// deployments onto config keys.
var legacyEnv = map[string]string{
	"server.port":                "PORT",
	"sender.address":             "SENDER",
	"provider.connection_string": "COMMUNICATION_SERVICES_CONNECTION_STRING",
}

// Load reads configuration from the given config directory path.
// It looks for an optional file named "config.yaml" in that directory.
// Environment variables with prefix EMAIL_GATEWAY_ override file values;
// for example, EMAIL_GATEWAY_PROVIDER_TIMEOUT overrides provider.timeout.
// PORT, SENDER and COMMUNICATION_SERVICES_CONNECTION_STRING are honoured too.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("EMAIL_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		// Prefixed variables still win: BindEnv checks names in order.
		prefixed := "EMAIL_GATEWAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so that Unmarshal sees environment
// overrides for keys absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("sender.address", "")

	v.SetDefault("provider.connection_string", "")
	v.SetDefault("provider.handle_signing_key", "")
	v.SetDefault("provider.api_version", "2023-03-31")
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.handle_ttl", time.Duration(0))

	v.SetDefault("api.legacy_errors", false)
	v.SetDefault("api.max_body_bytes", 10<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "email-gateway.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_files", 5)

	v.SetDefault("history.type", "none")
	v.SetDefault("history.redis_addr", "localhost:6379")
	v.SetDefault("history.redis_password", "")
	v.SetDefault("history.redis_db", 0)
	v.SetDefault("history.database_url", "")
	v.SetDefault("history.redis_prefix", "email-gateway:history")
	v.SetDefault("history.pool_min", 1)
	v.SetDefault("history.pool_max", 5)
	v.SetDefault("history.connect_timeout", 5*time.Second)
	v.SetDefault("history.max_entries", 1000)

	v.SetDefault("archive.type", "none")
	v.SetDefault("archive.path", "./archive")
	v.SetDefault("archive.s3_bucket", "")
	v.SetDefault("archive.s3_prefix", "messages/")
	v.SetDefault("archive.s3_endpoint", "")
	v.SetDefault("archive.s3_region", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Sender.Address == "" {
		return errors.New("sender.address (SENDER) is required")
	}
	if c.Provider.ConnectionString == "" {
		return errors.New("provider.connection_string (COMMUNICATION_SERVICES_CONNECTION_STRING) is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.History.Type {
	case "", "none", "memory", "redis":
	case "postgres":
		if c.History.DatabaseURL == "" {
			return errors.New("history.database_url is required for postgres history")
		}
	default:
		return fmt.Errorf("unknown history type: %s", c.History.Type)
	}

	switch c.Archive.Type {
	case "", "none", "local":
	case "s3":
		if c.Archive.S3Bucket == "" {
			return errors.New("archive.s3_bucket is required for s3 archive")
		}
	default:
		return fmt.Errorf("unknown archive type: %s", c.Archive.Type)
	}

	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
