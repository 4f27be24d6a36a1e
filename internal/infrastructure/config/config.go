package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for every environment variable override.
const EnvPrefix = "DEVIALET"

// Poll interval bounds, in seconds.
const (
	MinPollInterval     = 5
	MaxPollInterval     = 60
	DefaultPollInterval = 10
)

// Config is the root configuration structure for the Devialet bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Bridge    BridgeConfig    `yaml:"bridge"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DeviceConfig describes the speaker being controlled.
type DeviceConfig struct {
	// ID identifies the device in MQTT topics and API responses.
	// Defaults to "devialet"; set it when running one bridge per speaker.
	ID string `yaml:"id"`

	// IP is the speaker's address on the local network. A port may be
	// appended ("192.168.1.20:8080"); port 80 is used otherwise.
	IP string `yaml:"ip"`

	// PollInterval is the refresh period in seconds (5..60).
	PollInterval int `yaml:"poll_interval" split_words:"true"`

	// RequestTimeout bounds every HTTP request to the speaker, in seconds.
	RequestTimeout int `yaml:"request_timeout" split_words:"true"`

	// InfoTTL is how long device information and the source list are
	// cached before being fetched again, in seconds.
	InfoTTL int `yaml:"info_ttl" split_words:"true"`
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
	ClientID string `yaml:"client_id" split_words:"true"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" split_words:"true"`
	MaxDelay     int `yaml:"max_delay" split_words:"true"`
	MaxAttempts  int `yaml:"max_attempts" split_words:"true"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file" split_words:"true"`
	KeyFile  string `yaml:"key_file" split_words:"true"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size" split_words:"true"`
	PingInterval   int    `yaml:"ping_interval" split_words:"true"`
	PongTimeout    int    `yaml:"pong_timeout" split_words:"true"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size" split_words:"true"`
	FlushInterval int    `yaml:"flush_interval" split_words:"true"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BridgeConfig contains MQTT bridge settings.
type BridgeConfig struct {
	// TopicPrefix is prepended to every topic the bridge publishes or
	// subscribes to. The device ID is appended after it.
	TopicPrefix string `yaml:"topic_prefix" split_words:"true"`

	// HealthInterval is how often health is republished, in seconds.
	HealthInterval int `yaml:"health_interval" split_words:"true"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DEVIALET_SECTION_KEY
// For example: DEVIALET_DEVICE_IP, DEVIALET_DEVICE_POLL_INTERVAL
//
// An empty path skips the file and configures from defaults and the
// environment only.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Home",
		},
		Device: DeviceConfig{
			ID:             "devialet",
			PollInterval:   DefaultPollInterval,
			RequestTimeout: 5,
			InfoTTL:        3600,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "devialet-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bridge: BridgeConfig{
			TopicPrefix:    "graylogic/devialet",
			HealthInterval: 30,
		},
	}
}

// applyEnvOverrides overlays DEVIALET_* environment variables onto cfg.
// Unset variables leave the file or default value in place.
func applyEnvOverrides(cfg *Config) error {
	return envconfig.Process(EnvPrefix, cfg)
}

// Validate checks the configuration for errors.
//
// Every problem is collected so a single run reports all of them.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.IP == "" {
		errs = append(errs, "device.ip is required (set DEVIALET_DEVICE_IP environment variable)")
	} else if !validHost(c.Device.IP) {
		errs = append(errs, fmt.Sprintf("device.ip %q is not a valid host", c.Device.IP))
	}
	if c.Device.PollInterval < MinPollInterval || c.Device.PollInterval > MaxPollInterval {
		errs = append(errs, fmt.Sprintf("device.poll_interval must be between %d and %d seconds", MinPollInterval, MaxPollInterval))
	}
	if c.Device.RequestTimeout < 1 {
		errs = append(errs, "device.request_timeout must be at least 1 second")
	}
	if c.Device.InfoTTL < 0 {
		errs = append(errs, "device.info_ttl must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when tls is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.MQTT.Enabled && c.Bridge.TopicPrefix == "" {
		errs = append(errs, "bridge.topic_prefix is required when mqtt is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validHost accepts an IP, a hostname, or either with a port suffix.
func validHost(s string) bool {
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	if host == "" || strings.ContainsAny(host, "/ ?#") {
		return false
	}
	return true
}

// GetPollInterval returns the device poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Device.PollInterval) * time.Second
}

// GetRequestTimeout returns the device request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Device.RequestTimeout) * time.Second
}

// GetInfoTTL returns the device info cache lifetime as a Duration.
func (c *Config) GetInfoTTL() time.Duration {
	return time.Duration(c.Device.InfoTTL) * time.Second
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
