// Package config loads the gateway configuration from a YAML file and
// environment variables using Viper, with defaults and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chargeweave/ocpihub/internal/ocpi"
)

// Audit backend selectors.
const (
	AuditBackendNone  = "none"
	AuditBackendFile  = "file"
	AuditBackendRedis = "redis"
)

// Config is the complete gateway configuration.
//
// Configuration can be loaded from:
//   - YAML file (config/config.yaml)
//   - Environment variables (prefixed with OCPIHUB_)
//
// Example:
//
//	cfg, err := config.Load("config/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	OCPI          OCPIConfig          `mapstructure:"ocpi"`
	Store         StoreConfig         `mapstructure:"store"`
	Registration  RegistrationConfig  `mapstructure:"registration"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Redis         RedisConfig         `mapstructure:"redis"`
	TLS           TLSConfig           `mapstructure:"tls"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the network interface to bind to.
	Host string `mapstructure:"host"`

	// Port is the HTTP server port.
	Port int `mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string `mapstructure:"gin_mode"`
}

// OCPIConfig is the gateway's own OCPI identity and protocol behavior.
type OCPIConfig struct {
	// CountryCode is our ISO-3166 alpha-2 country code.
	CountryCode string `mapstructure:"country_code"`

	// PartyID is our 3-character OCPI party id.
	PartyID string `mapstructure:"party_id"`

	// Role is the role we play on the network: "CPO" or "EMSP".
	Role string `mapstructure:"role"`

	// BusinessName is advertised in credentials exchanges.
	BusinessName string `mapstructure:"business_name"`

	// BusinessWebsite is advertised in credentials exchanges.
	BusinessWebsite string `mapstructure:"business_website"`

	// ExternalURL is the externally reachable base URL including the path
	// prefix, e.g. "https://hub.example.com/ocpi".
	ExternalURL string `mapstructure:"external_url"`

	// PathPrefix is the local mount point of the OCPI routes.
	PathPrefix string `mapstructure:"path_prefix"`

	// LocationsAsOpenData offers the locations endpoint to anonymous callers
	// when our role is CPO.
	LocationsAsOpenData bool `mapstructure:"locations_as_open_data"`
}

// StoreConfig tunes the entity stores.
type StoreConfig struct {
	// AllowDowngrades is the default downgrade policy for entity updates.
	AllowDowngrades bool `mapstructure:"allow_downgrades"`

	// KeepRemovedEvses retains EVSEs whose status becomes REMOVED.
	KeepRemovedEvses bool `mapstructure:"keep_removed_evses"`

	// EventBufferSize bounds the change notification queue.
	EventBufferSize int `mapstructure:"event_buffer_size"`
}

// RegistrationConfig tunes the credentials handshake.
type RegistrationConfig struct {
	// ClientTimeout bounds outbound version discovery requests.
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
}

// AuditConfig selects and configures the audit backend.
type AuditConfig struct {
	// Backend is one of "none", "file", "redis".
	Backend string `mapstructure:"backend"`

	// FilePath is the JSON-lines audit file for the file backend.
	FilePath string `mapstructure:"file_path"`
}

// RedisConfig contains Redis connection settings for the audit stream.
type RedisConfig struct {
	// Addresses contains Redis server addresses.
	Addresses []string `mapstructure:"addresses"`

	// Password for Redis authentication (optional).
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `mapstructure:"pool_size"`
}

// TLSConfig contains server TLS settings.
type TLSConfig struct {
	// Enabled turns HTTPS on.
	Enabled bool `mapstructure:"enabled"`

	// CertFile is the server certificate path.
	CertFile string `mapstructure:"cert_file"`

	// KeyFile is the server private key path.
	KeyFile string `mapstructure:"key_file"`
}

// ObservabilityConfig contains logging and metrics settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`

	// Format is "json" or "console".
	Format string `mapstructure:"format"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the /metrics endpoint.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the given file path (or the default
// locations when empty) with OCPIHUB_ environment overrides applied.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ocpihub")
	}

	v.SetEnvPrefix("OCPIHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional if all values come from env vars.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.gin_mode", "release")

	// OCPI identity
	v.SetDefault("ocpi.country_code", "NL")
	v.SetDefault("ocpi.party_id", "HUB")
	v.SetDefault("ocpi.role", "EMSP")
	v.SetDefault("ocpi.business_name", "OCPI Hub Gateway")
	v.SetDefault("ocpi.external_url", "http://localhost:8080/ocpi")
	v.SetDefault("ocpi.path_prefix", "/ocpi")
	v.SetDefault("ocpi.locations_as_open_data", false)

	// Store
	v.SetDefault("store.allow_downgrades", false)
	v.SetDefault("store.keep_removed_evses", true)
	v.SetDefault("store.event_buffer_size", 256)

	// Registration
	v.SetDefault("registration.client_timeout", "10s")

	// Audit
	v.SetDefault("audit.backend", AuditBackendFile)
	v.SetDefault("audit.file_path", "audit.jsonl")

	// Redis
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// TLS
	v.SetDefault("tls.enabled", false)

	// Observability
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.validateOCPI(); err != nil {
		return fmt.Errorf("ocpi config: %w", err)
	}
	if err := c.validateAudit(); err != nil {
		return fmt.Errorf("audit config: %w", err)
	}
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("tls config: %w", err)
	}
	if err := c.validateObservability(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin_mode: %q", c.Server.GinMode)
	}
	return nil
}

func (c *Config) validateOCPI() error {
	if len(c.OCPI.CountryCode) != 2 {
		return fmt.Errorf("country_code must be 2 characters, got %q", c.OCPI.CountryCode)
	}
	if len(c.OCPI.PartyID) != 3 {
		return fmt.Errorf("party_id must be 3 characters, got %q", c.OCPI.PartyID)
	}
	if !c.Role().Valid() {
		return fmt.Errorf("role must be CPO or EMSP, got %q", c.OCPI.Role)
	}
	if c.OCPI.ExternalURL == "" {
		return errors.New("external_url is required")
	}
	if c.OCPI.BusinessName == "" {
		return errors.New("business_name is required")
	}
	if !strings.HasPrefix(c.OCPI.PathPrefix, "/") {
		return fmt.Errorf("path_prefix must start with /, got %q", c.OCPI.PathPrefix)
	}
	return nil
}

func (c *Config) validateAudit() error {
	switch c.Audit.Backend {
	case AuditBackendNone:
	case AuditBackendFile:
		if c.Audit.FilePath == "" {
			return errors.New("file_path is required for the file backend")
		}
	case AuditBackendRedis:
		if len(c.Redis.Addresses) == 0 {
			return errors.New("redis addresses are required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid backend: %q", c.Audit.Backend)
	}
	return nil
}

func (c *Config) validateTLS() error {
	if !c.TLS.Enabled {
		return nil
	}
	if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
		return errors.New("cert_file and key_file are required when TLS is enabled")
	}
	return nil
}

func (c *Config) validateObservability() error {
	switch c.Observability.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Observability.Logging.Level)
	}
	switch c.Observability.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Observability.Logging.Format)
	}
	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", c.Observability.Metrics.Path)
	}
	return nil
}

// Role returns the configured OCPI role.
func (c *Config) Role() ocpi.Role {
	return ocpi.Role(strings.ToUpper(c.OCPI.Role))
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
