// Package config loads process settings from a YAML file, environment
// variables and command-line flags, in increasing order of precedence.
// Settings owned by a house (API address, timezone) live in the database.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	SerialPort       string        `yaml:"serial_port"`
	DBPath           string        `yaml:"db_path"`
	LogLevel         string        `yaml:"log_level"`
	TransportTimeout time.Duration `yaml:"transport_timeout"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
}

// MQTTConfig selects the broker events are published to. An empty Broker
// disables publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// Enabled reports whether a broker is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SerialPort:       "/dev/ttyUSB0",
		DBPath:           defaultDBPath(),
		LogLevel:         "info",
		TransportTimeout: 5 * time.Second,
		MQTT: MQTTConfig{
			ClientID:    "linkhub",
			TopicPrefix: "linkhub",
			QoS:         1,
		},
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "linkhub.db"
	}
	return filepath.Join(dir, "linkhub", "linkhub.db")
}

// Load reads the YAML file at path over the defaults. An empty path loads
// defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies LINKHUB_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LINKHUB_SERIAL_PORT"); v != "" {
		cfg.SerialPort = v
	}
	if v := os.Getenv("LINKHUB_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LINKHUB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LINKHUB_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("LINKHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("LINKHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.DBPath == "" {
		errs = append(errs, "db_path is required")
	}
	if c.TransportTimeout <= 0 {
		errs = append(errs, "transport_timeout must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log_level %q is not one of trace, debug, info, warn, error", c.LogLevel))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled() && c.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required when a broker is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Parse reads -config and the override flags from args. Flags given on the
// command line win over the file and the environment.
func Parse(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "", "Path to YAML configuration file")
	serialPort := fs.String("port", "", "Path to PLM serial port")
	dbPath := fs.String("db", "", "Path to database file")
	logLevel := fs.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	timeout := fs.Duration("timeout", 0, "Per-exchange transport timeout")
	broker := fs.String("mqtt", "", "MQTT broker URL, e.g. tcp://localhost:1883")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg, err := Load(*path)
	if err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.SerialPort = *serialPort
		case "db":
			cfg.DBPath = *dbPath
		case "log-level":
			cfg.LogLevel = *logLevel
		case "timeout":
			cfg.TransportTimeout = *timeout
		case "mqtt":
			cfg.MQTT.Broker = *broker
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Join(errors.New("invalid flags"), err)
	}
	return cfg, nil
}
