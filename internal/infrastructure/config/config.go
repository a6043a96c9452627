package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the SISEOA core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
	Automation AutomationConfig `yaml:"automation"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite document-store settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker carries the shared real-time status store, the channel command
// path, and every inbound intent stream the core consumes.
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for energy telemetry.
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
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AutomationConfig contains the knobs for the automation engine: event
// history bounds, pattern mining thresholds, rule executor cadence, energy
// accrual cadence, and the connectivity probe.
type AutomationConfig struct {
	// EventHistoryLimit bounds the per-device event log. Inserting past the
	// limit trims the oldest entries. This can be shorter than the mining
	// lookback window, in which case the miner sees a truncated week.
	EventHistoryLimit int `yaml:"event_history_limit"`

	// MiningLookbackDays is how far back the pattern miner reads events.
	MiningLookbackDays int `yaml:"mining_lookback_days"`

	// SessionGap is the maximum gap between consecutive events within one
	// usage session. Events further apart start a new session.
	SessionGap time.Duration `yaml:"session_gap"`

	// MinQualifyingEvents is the minimum number of usable events required
	// before the miner will produce a rule for a device.
	MinQualifyingEvents int `yaml:"min_qualifying_events"`

	// ExecutorTick is the rule executor evaluation interval.
	ExecutorTick time.Duration `yaml:"executor_tick"`

	// AccrualPoll is how often a running accrual task checks elapsed time.
	AccrualPoll time.Duration `yaml:"accrual_poll"`

	// AccrualFlush is the minimum ON-duration between incremental energy
	// writes while a device stays ON.
	AccrualFlush time.Duration `yaml:"accrual_flush"`

	// ProbeInterval is the connectivity guard's probe cadence.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ProbeTimeout bounds a single probe. A stalled probe counts as failure.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// HighDrawTypes are device type tags forced OFF by eco mode.
	HighDrawTypes []string `yaml:"high_draw_types"`

	// NightOffTypes are device type tags forced OFF by night mode.
	NightOffTypes []string `yaml:"night_off_types"`

	// MiningDay and MiningHour schedule the weekly background mining run.
	MiningDay  string `yaml:"mining_day"`
	MiningHour int    `yaml:"mining_hour"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SISEOA_SECTION_KEY
// For example: SISEOA_DATABASE_PATH, SISEOA_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults for every section.
// The automation cadences mirror the deployed controller: minute-level rule
// ticks, 10-second accrual polls with 3-minute flushes, 10-second probes.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "SISEOA",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/siseoa.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "siseoa-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			URL:           "http://localhost:8086",
			Org:           "siseoa",
			Bucket:        "energy",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Automation: AutomationConfig{
			EventHistoryLimit:   200,
			MiningLookbackDays:  7,
			SessionGap:          15 * time.Minute,
			MinQualifyingEvents: 4,
			ExecutorTick:        time.Minute,
			AccrualPoll:         10 * time.Second,
			AccrualFlush:        3 * time.Minute,
			ProbeInterval:       10 * time.Second,
			ProbeTimeout:        5 * time.Second,
			HighDrawTypes:       []string{"AC"},
			NightOffTypes:       []string{"Fan", "AC"},
			MiningDay:           "Sunday",
			MiningHour:          2,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SISEOA_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SISEOA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SISEOA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SISEOA_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SISEOA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SISEOA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SISEOA_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("SISEOA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("SISEOA_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SISEOA_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Logging
	if v := os.Getenv("SISEOA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
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

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	a := c.Automation
	if a.EventHistoryLimit < 1 {
		errs = append(errs, "automation.event_history_limit must be positive")
	}
	if a.MiningLookbackDays < 1 {
		errs = append(errs, "automation.mining_lookback_days must be positive")
	}
	if a.SessionGap <= 0 {
		errs = append(errs, "automation.session_gap must be positive")
	}
	if a.MinQualifyingEvents < 4 {
		errs = append(errs, "automation.min_qualifying_events must be at least 4")
	}
	if a.ExecutorTick <= 0 {
		errs = append(errs, "automation.executor_tick must be positive")
	}
	if a.AccrualPoll <= 0 || a.AccrualFlush <= 0 {
		errs = append(errs, "automation accrual intervals must be positive")
	}
	if a.ProbeInterval <= 0 {
		errs = append(errs, "automation.probe_interval must be positive")
	}
	if a.ProbeTimeout <= 0 || a.ProbeTimeout >= a.ProbeInterval {
		errs = append(errs, "automation.probe_timeout must be positive and shorter than probe_interval")
	}
	if _, err := parseWeekday(a.MiningDay); err != nil {
		errs = append(errs, "automation.mining_day must be a weekday name")
	}
	if a.MiningHour < 0 || a.MiningHour > 23 {
		errs = append(errs, "automation.mining_hour must be between 0 and 23")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// MiningWeekday returns the configured mining day as a time.Weekday.
// Validate guarantees the name parses.
func (c *Config) MiningWeekday() time.Weekday {
	d, _ := parseWeekday(c.Automation.MiningDay)
	return d
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
