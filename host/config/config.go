// Package config loads the host tool configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of softi2c-host.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Bus     BusConfig     `yaml:"bus"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

// SerialConfig describes the link to the firmware.
type SerialConfig struct {
	Device           string `yaml:"device"`
	Baud             int    `yaml:"baud"`
	ReadTimeoutMS    int    `yaml:"read_timeout_ms"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

// BusConfig is the software bus the host asks the firmware to configure.
type BusConfig struct {
	Name           string `yaml:"name"`
	OID            int    `yaml:"oid"`
	SCLPin         uint32 `yaml:"scl_pin"`
	SDAPin         uint32 `yaml:"sda_pin"`
	DelayUS        uint32 `yaml:"delay_us"`
	StretchLimitUS uint32 `yaml:"stretch_limit_us"`
}

// MQTTConfig contains the broker scan results are published to.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	Output string `yaml:"output"` // stdout or stderr
}

// Load reads the YAML file at path on top of the defaults, applies
// SOFTI2C_* environment overrides and validates the result. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:           "/dev/ttyACM0",
			Baud:             250000,
			ReadTimeoutMS:    100,
			CommandTimeoutMS: 2000,
		},
		Bus: BusConfig{
			Name:    "i2c0",
			OID:     0,
			SCLPin:  5,
			SDAPin:  4,
			DelayUS: 5,
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    "softi2c-host",
			TopicPrefix: "softi2c",
			QoS:         1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies SOFTI2C_SECTION_KEY environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOFTI2C_DEVICE"); v != "" {
		cfg.Serial.Device = v
	}
	if v := os.Getenv("SOFTI2C_MQTT_BROKER"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		cfg.MQTT.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				cfg.MQTT.Port = p
			}
		}
	}
	if v := os.Getenv("SOFTI2C_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("SOFTI2C_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("SOFTI2C_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Serial.Device == "" {
		errs = append(errs, "serial.device is required")
	}
	if c.Serial.CommandTimeoutMS <= 0 {
		errs = append(errs, "serial.command_timeout_ms must be positive")
	}

	if c.Bus.OID < 0 || c.Bus.OID > 255 {
		errs = append(errs, "bus.oid must be between 0 and 255")
	}
	if c.Bus.SCLPin == c.Bus.SDAPin {
		errs = append(errs, "bus.scl_pin and bus.sda_pin must differ")
	}
	if c.Bus.Name == "" {
		errs = append(errs, "bus.name is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, "mqtt.host is required when mqtt is enabled")
		}
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			errs = append(errs, "mqtt.port must be between 1 and 65535")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		errs = append(errs, "logging.format must be console or json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CommandTimeout returns the per-command timeout as a Duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Serial.CommandTimeoutMS) * time.Millisecond
}
