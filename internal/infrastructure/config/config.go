package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ThingView Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Devices   DevicesConfig   `yaml:"devices"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Shadow    ShadowConfig    `yaml:"shadow"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Model     ModelConfig     `yaml:"model"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DevicesConfig lists the devices tracked by the reconciliation engine.
type DevicesConfig struct {
	// Tracked is the set of device ids (thing names) to reconcile.
	// Each tracked device gets its own background refresh loop.
	Tracked []string `yaml:"tracked"`
}

// ReconcileConfig contains the reconciliation engine tuning knobs.
//
// The thresholds are deployment-tunable defaults, not invariants: a site
// with slow uplinks may want a longer staleness window.
type ReconcileConfig struct {
	// PollInterval is the refresh tick interval in seconds.
	PollInterval int `yaml:"poll_interval"`

	// StalenessThreshold is the maximum age (seconds) of the last update
	// for a device to be reported online.
	StalenessThreshold int `yaml:"staleness_threshold"`

	// SyntheticAfter is the age (seconds) beyond which observed data is
	// abandoned in favour of synthetic readings.
	SyntheticAfter int `yaml:"synthetic_after"`

	// DegradedThreshold is the number of consecutive all-source failures
	// before a refresher enters degraded mode. Minimum 3.
	DegradedThreshold int `yaml:"degraded_threshold"`

	// DegradedMaxInterval caps the backed-off tick interval (seconds)
	// while degraded.
	DegradedMaxInterval int `yaml:"degraded_max_interval"`

	// SourceTimeout bounds each source query (seconds).
	SourceTimeout int `yaml:"source_timeout"`

	// Synthetic enables synthetic fallback readings. When false a device
	// with no data simply reports offline with an empty snapshot.
	Synthetic bool `yaml:"synthetic"`
}

// DatabaseConfig contains SQLite database settings for the durable
// telemetry store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// ShadowConfig contains the last-known-state (shadow) store settings.
type ShadowConfig struct {
	// Enabled toggles the shadow source. When false the merger simply
	// never sees a shadow snapshot.
	Enabled bool `yaml:"enabled"`

	// BaseURL is the shadow service endpoint, e.g. "https://iot.example.com".
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each shadow fetch (seconds).
	Timeout int `yaml:"timeout"`
}

// GatewayConfig contains the optional reasoning-gateway settings.
// When URL is empty the query router skips straight to local patterns.
type GatewayConfig struct {
	URL         string `yaml:"url"`
	BearerToken string `yaml:"bearer_token"`
	Timeout     int    `yaml:"timeout"`
}

// ModelConfig contains the generic model-invocation endpoint settings.
type ModelConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	ModelID   string `yaml:"model_id"`
	MaxTokens int    `yaml:"max_tokens"`
	Timeout   int    `yaml:"timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for the telemetry
// mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
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

// SecurityConfig contains API security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer-token verification settings.
// When Enabled is false the API accepts unauthenticated requests.
type JWTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: THINGVIEW_SECTION_KEY
// For example: THINGVIEW_DATABASE_PATH, THINGVIEW_MQTT_HOST
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
// The reconcile thresholds mirror the behaviour of the original dashboard
// backend: 5s poll, 30s offline, 60s synthetic fallback.
func defaultConfig() *Config {
	return &Config{
		Devices: DevicesConfig{
			Tracked: []string{"ESP32_SmartDevice"},
		},
		Reconcile: ReconcileConfig{
			PollInterval:        5,
			StalenessThreshold:  30,
			SyntheticAfter:      60,
			DegradedThreshold:   3,
			DegradedMaxInterval: 40,
			SourceTimeout:       5,
			Synthetic:           true,
		},
		Database: DatabaseConfig{
			Path:        "./data/thingview.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "thingview-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Shadow: ShadowConfig{
			Enabled: false,
			Timeout: 5,
		},
		Gateway: GatewayConfig{
			Timeout: 30,
		},
		Model: ModelConfig{
			ModelID:   "claude-3-haiku",
			MaxTokens: 500,
			Timeout:   30,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: THINGVIEW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("THINGVIEW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("THINGVIEW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("THINGVIEW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("THINGVIEW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Shadow store
	if v := os.Getenv("THINGVIEW_SHADOW_URL"); v != "" {
		cfg.Shadow.BaseURL = v
		cfg.Shadow.Enabled = true
	}

	// Reasoning gateway
	if v := os.Getenv("THINGVIEW_GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("THINGVIEW_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.BearerToken = v
	}

	// Model invoker
	if v := os.Getenv("THINGVIEW_MODEL_URL"); v != "" {
		cfg.Model.URL = v
	}
	if v := os.Getenv("THINGVIEW_MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}

	// InfluxDB
	if v := os.Getenv("THINGVIEW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("THINGVIEW_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("THINGVIEW_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Security - JWT secret
	if v := os.Getenv("THINGVIEW_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if len(c.Devices.Tracked) == 0 {
		errs = append(errs, "devices.tracked must list at least one device id")
	}
	for _, id := range c.Devices.Tracked {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, "devices.tracked must not contain empty ids")
			break
		}
	}

	if c.Reconcile.PollInterval < 1 {
		errs = append(errs, "reconcile.poll_interval must be at least 1 second")
	}
	if c.Reconcile.StalenessThreshold < 1 {
		errs = append(errs, "reconcile.staleness_threshold must be at least 1 second")
	}
	if c.Reconcile.SyntheticAfter < c.Reconcile.StalenessThreshold {
		errs = append(errs, "reconcile.synthetic_after must not be below reconcile.staleness_threshold")
	}
	const minDegradedThreshold = 3
	if c.Reconcile.DegradedThreshold < minDegradedThreshold {
		errs = append(errs, "reconcile.degraded_threshold must be at least 3")
	}
	if c.Reconcile.DegradedMaxInterval < c.Reconcile.PollInterval {
		errs = append(errs, "reconcile.degraded_max_interval must not be below reconcile.poll_interval")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Shadow.Enabled && c.Shadow.BaseURL == "" {
		errs = append(errs, "shadow.base_url is required when shadow.enabled is true")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// JWT secret is only required when bearer auth is enabled.
	const minJWTSecretLength = 32
	if c.Security.JWT.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when security.jwt.enabled is true (set THINGVIEW_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the refresh tick interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Reconcile.PollInterval) * time.Second
}

// GetStalenessThreshold returns the online/offline threshold as a Duration.
func (c *Config) GetStalenessThreshold() time.Duration {
	return time.Duration(c.Reconcile.StalenessThreshold) * time.Second
}

// GetSyntheticAfter returns the synthetic-fallback threshold as a Duration.
func (c *Config) GetSyntheticAfter() time.Duration {
	return time.Duration(c.Reconcile.SyntheticAfter) * time.Second
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
