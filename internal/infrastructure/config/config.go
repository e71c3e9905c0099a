package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Integrations.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site         SiteConfig         `yaml:"site"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
	Flows        FlowsConfig        `yaml:"flows"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Integrations IntegrationsConfig `yaml:"integrations"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ExternalURL is the externally reachable base URL of this process.
	// OAuth2 providers redirect the browser to ExternalURL + /auth/{domain}/callback.
	ExternalURL string           `yaml:"external_url"`
	TLS         TLSConfig        `yaml:"tls"`
	Timeouts    APITimeoutConfig `yaml:"timeouts"`
	CORS        CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// Only used when Output is "file".
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
//
// The secret signs both API bearer tokens and the OAuth2 state parameter
// that correlates an authorisation callback with its suspended config flow.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// FlowsConfig controls config flow lifetimes.
type FlowsConfig struct {
	// ExternalStepTimeout bounds how long a flow waits for an OAuth2 callback.
	ExternalStepTimeout time.Duration `yaml:"external_step_timeout"`

	// IdleTimeout removes flows that nobody has touched for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ReapInterval is how often expired flows are swept.
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// DiscoveryConfig contains zeroconf discovery settings.
type DiscoveryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// IntegrationsConfig contains per-integration settings.
type IntegrationsConfig struct {
	Lyric        LyricConfig        `yaml:"lyric"`
	SystemBridge SystemBridgeConfig `yaml:"system_bridge"`
	OVOEnergy    OVOEnergyConfig    `yaml:"ovoenergy"`
}

// LyricConfig contains Honeywell Lyric cloud settings.
type LyricConfig struct {
	Enabled      bool          `yaml:"enabled"`
	AuthorizeURL string        `yaml:"authorize_url"`
	TokenURL     string        `yaml:"token_url"`
	APIURL       string        `yaml:"api_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

// SystemBridgeConfig contains System Bridge settings.
type SystemBridgeConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DefaultPort  int           `yaml:"default_port"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

// OVOEnergyConfig contains OVO Energy portal settings.
type OVOEnergyConfig struct {
	Enabled      bool          `yaml:"enabled"`
	AuthURL      string        `yaml:"auth_url"`
	UsageURL     string        `yaml:"usage_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_EXTERNAL_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/integrations.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-integrations",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host:        "0.0.0.0",
			Port:        8090,
			ExternalURL: "http://localhost:8090",
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/integrations.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 1440,
			},
		},
		Flows: FlowsConfig{
			ExternalStepTimeout: 10 * time.Minute,
			IdleTimeout:         time.Hour,
			ReapInterval:        time.Minute,
		},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
			Timeout:  10 * time.Second,
		},
		Integrations: IntegrationsConfig{
			Lyric: LyricConfig{
				AuthorizeURL: "https://api.honeywell.com/oauth2/authorize",
				TokenURL:     "https://api.honeywell.com/oauth2/token",
				APIURL:       "https://api.honeywell.com",
				PollInterval: 120 * time.Second,
				PollTimeout:  60 * time.Second,
			},
			SystemBridge: SystemBridgeConfig{
				Enabled:      true,
				DefaultPort:  9170,
				PollInterval: 120 * time.Second,
				PollTimeout:  10 * time.Second,
			},
			OVOEnergy: OVOEnergyConfig{
				AuthURL:      "https://my.ovoenergy.com",
				UsageURL:     "https://smartpaym.ovoenergy.com",
				PollInterval: 300 * time.Second,
				PollTimeout:  60 * time.Second,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_EXTERNAL_URL"); v != "" {
		cfg.API.ExternalURL = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("GRAYLOGIC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The secret signs OAuth2 state tokens as well as API tokens, so a weak
	// secret would let anyone resume somebody else's config flow.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Flows.ExternalStepTimeout <= 0 {
		errs = append(errs, "flows.external_step_timeout must be positive")
	}

	lyric := c.Integrations.Lyric
	if lyric.Enabled {
		if c.API.ExternalURL == "" {
			errs = append(errs, "api.external_url is required when integrations.lyric is enabled")
		}
		if lyric.AuthorizeURL == "" || lyric.TokenURL == "" || lyric.APIURL == "" {
			errs = append(errs, "integrations.lyric authorize_url, token_url and api_url are required")
		}
	}

	errs = append(errs, validatePolling("integrations.lyric", lyric.Enabled, lyric.PollInterval, lyric.PollTimeout)...)

	sb := c.Integrations.SystemBridge
	errs = append(errs, validatePolling("integrations.system_bridge", sb.Enabled, sb.PollInterval, sb.PollTimeout)...)
	if sb.Enabled && (sb.DefaultPort < 1 || sb.DefaultPort > 65535) {
		errs = append(errs, "integrations.system_bridge.default_port must be between 1 and 65535")
	}

	ovo := c.Integrations.OVOEnergy
	errs = append(errs, validatePolling("integrations.ovoenergy", ovo.Enabled, ovo.PollInterval, ovo.PollTimeout)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validatePolling checks the poll interval and timeout of an enabled integration.
func validatePolling(section string, enabled bool, interval, timeout time.Duration) []string {
	if !enabled {
		return nil
	}
	var errs []string
	if interval <= 0 {
		errs = append(errs, section+".poll_interval must be positive")
	}
	if timeout <= 0 {
		errs = append(errs, section+".poll_timeout must be positive")
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
