package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/yelzgniq/cap-android-steps/internal/adapters/mqtt"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/opcua"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/simulator"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

const (
	SourceSimulator = "simulator"
	SourceMQTT      = "mqtt"
	SourceOPCUA     = "opcua"
	SourcePush      = "push"

	PermissionAuto = "auto"
	PermissionHost = "host"
)

type Config struct {
	Policy     ports.Policy     `yaml:"policy"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Permission PermissionConfig `yaml:"permission"`
	Timescale  TimescaleConfig  `yaml:"timescale"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	WAL        WALConfig        `yaml:"wal"`
	Log        LogConfig        `yaml:"log"`
}

// SensorConfig selects the step counter source. Only the section named by
// Source is validated.
type SensorConfig struct {
	Source    string           `yaml:"source" default:"simulator"`
	Simulator simulator.Config `yaml:"simulator"`
	MQTT      mqtt.Config      `yaml:"mqtt"`
	OPCUA     opcua.Config     `yaml:"opcua"`
}

type PermissionConfig struct {
	// Mode "auto" grants without prompting; "host" queues prompts for the
	// hosting shell at /host/permissions.
	Mode           string        `yaml:"mode" default:"auto"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"2m"`
	RequestOnStart bool          `yaml:"request_on_start" default:"true"`
	PromptBacklog  int           `yaml:"prompt_backlog" default:"16"`
}

// TimescaleConfig enables the archive sink when ConnString is set.
type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table" default:"step_samples"`
}

type BridgeConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" default:":9100"`
}

type WALConfig struct {
	Dir  string `yaml:"dir" default:"./data/wal"`
	Sync bool   `yaml:"sync"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"text"`
}

// Default returns a configuration with every default applied, suitable for
// running the simulator without a file.
func Default() *Config {
	var cfg Config
	defaults.SetDefaults(&cfg)
	cfg.derive()
	return &cfg
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	defaults.SetDefaults(&cfg)
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.derive()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// derive fills values that depend on other fields.
func (c *Config) derive() {
	if c.Sensor.OPCUA.SensorID == "" {
		c.Sensor.OPCUA.SensorID = c.Sensor.OPCUA.StepNode
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = c.Bridge.Addr
	}
}

func (c *Config) validate() error {
	switch c.Sensor.Source {
	case SourceSimulator:
		if err := c.Sensor.Simulator.Validate(); err != nil {
			return fmt.Errorf("sensor.simulator: %w", err)
		}
	case SourceMQTT:
		if err := c.Sensor.MQTT.Validate(); err != nil {
			return fmt.Errorf("sensor.mqtt: %w", err)
		}
	case SourceOPCUA:
		if err := c.Sensor.OPCUA.Validate(); err != nil {
			return fmt.Errorf("sensor.opcua: %w", err)
		}
	case SourcePush:
	default:
		return fmt.Errorf("sensor.source %q is not one of simulator, mqtt, opcua, push", c.Sensor.Source)
	}

	switch c.Permission.Mode {
	case PermissionAuto, PermissionHost:
	default:
		return fmt.Errorf("permission.mode %q is not one of auto, host", c.Permission.Mode)
	}
	if c.Permission.RequestTimeout <= 0 {
		return fmt.Errorf("permission.request_timeout must be > 0")
	}

	switch c.Policy.OnWALFull {
	case "block", "drop":
	default:
		return fmt.Errorf("policy.on_wal_full %q is not one of block, drop", c.Policy.OnWALFull)
	}
	switch c.Policy.OnQueueFull {
	case "block", "drop", "reject":
	default:
		return fmt.Errorf("policy.on_queue_full %q is not one of block, drop, reject", c.Policy.OnQueueFull)
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}

	if c.Bridge.Addr == "" {
		return fmt.Errorf("bridge.addr is required")
	}
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}

// Logger builds a logrus logger from the log section.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return logger
}
