package capsteps

import (
	"github.com/yelzgniq/cap-android-steps/internal/adapters/mqtt"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/opcua"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/simulator"
	"github.com/yelzgniq/cap-android-steps/internal/app/config"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls WAL/queue thresholds.
	Policy = ports.Policy
	// SensorConfig selects and configures the step sensor source.
	SensorConfig = config.SensorConfig
	// SimulatorConfig drives the synthetic pedometer.
	SimulatorConfig = simulator.Config
	// MQTTConfig subscribes to published step readings.
	MQTTConfig = mqtt.Config
	// OPCUAConfig monitors a step counter node.
	OPCUAConfig = opcua.Config
	// PermissionConfig selects how runtime permission prompts are answered.
	PermissionConfig = config.PermissionConfig
	// TimescaleConfig configures the optional archive sink.
	TimescaleConfig = config.TimescaleConfig
	// BridgeConfig configures the plugin call HTTP server.
	BridgeConfig = config.BridgeConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// WALConfig configures on-disk durability.
	WALConfig = config.WALConfig
	// LogConfig configures the logrus logger.
	LogConfig = config.LogConfig
)

const (
	SourceSimulator = config.SourceSimulator
	SourceMQTT      = config.SourceMQTT
	SourceOPCUA     = config.SourceOPCUA
	SourcePush      = config.SourcePush

	PermissionModeAuto = config.PermissionAuto
	PermissionModeHost = config.PermissionHost
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig reads YAML from memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns a configuration that runs the simulator with every
// default applied.
func DefaultConfig() *Config {
	return config.Default()
}
