package capsteps

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	base "github.com/yelzgniq/cap-android-steps/pkg/capsteps"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrCollectorStopped  = base.ErrCollectorStopped
	ErrSensorUnavailable = base.ErrSensorUnavailable
)

// Type aliases so consumers can import github.com/yelzgniq/cap-android-steps directly.
type (
	Config             = base.Config
	Policy             = base.Policy
	SensorConfig       = base.SensorConfig
	SimulatorConfig    = base.SimulatorConfig
	MQTTConfig         = base.MQTTConfig
	OPCUAConfig        = base.OPCUAConfig
	PermissionConfig   = base.PermissionConfig
	TimescaleConfig    = base.TimescaleConfig
	BridgeConfig       = base.BridgeConfig
	MetricsConfig      = base.MetricsConfig
	WALConfig          = base.WALConfig
	LogConfig          = base.LogConfig
	Flow               = base.Flow
	FlowOption         = base.FlowOption
	StreamInOption     = base.StreamInOption
	StreamOutOption    = base.StreamOutOption
	Runtime            = base.Runtime
	RuntimeOption      = base.RuntimeOption
	Stats              = base.Stats
	StepSample         = base.StepSample
	SensorInfo         = base.SensorInfo
	Period             = base.Period
	StepCountResult    = base.StepCountResult
	SensorValuesResult = base.SensorValuesResult
	PermissionResult   = base.PermissionResult
	PermissionState    = base.PermissionState
	PermissionRequest  = base.PermissionRequest
	Rejection          = base.Rejection
	RejectionCode      = base.RejectionCode
	PushCollector      = base.PushCollector
	SampleBatchSink    = base.SampleBatchSink
	Collector          = base.Collector
	Sink               = base.Sink
	Transformer        = base.Transformer
	SampleQueue        = base.SampleQueue
	WAL                = base.WAL
	Observability      = base.Observability
	PermissionHost     = base.PermissionHost
	QueuedSample       = base.QueuedSample
	WALEntryID         = base.WALEntryID
	WALStats           = base.WALStats
)

const (
	PeriodHour = base.PeriodHour
	PeriodDay  = base.PeriodDay
	PeriodAll  = base.PeriodAll

	ActivityRecognition = base.ActivityRecognition

	SourceSimulator = base.SourceSimulator
	SourceMQTT      = base.SourceMQTT
	SourceOPCUA     = base.SourceOPCUA
	SourcePush      = base.SourcePush

	PermissionModeAuto = base.PermissionModeAuto
	PermissionModeHost = base.PermissionModeHost
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInPush(p *PushCollector) StreamInOption {
	return base.StreamInPush(p)
}

func StreamInQueue(q SampleQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInWAL(w WAL) StreamInOption {
	return base.StreamInWAL(w)
}

func StreamInPermissionHost(h PermissionHost) StreamInOption {
	return base.StreamInPermissionHost(h)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutTransformer(tr Transformer) StreamOutOption {
	return base.StreamOutTransformer(tr)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn SampleBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithTransformer(tr Transformer) RuntimeOption {
	return base.WithTransformer(tr)
}

func WithWAL(w WAL) RuntimeOption {
	return base.WithWAL(w)
}

func WithSampleQueue(q SampleQueue) RuntimeOption {
	return base.WithSampleQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithPermissionHost(h PermissionHost) RuntimeOption {
	return base.WithPermissionHost(h)
}

func WithLogger(l *logrus.Logger) RuntimeOption {
	return base.WithLogger(l)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

func WithClock(now func() time.Time) RuntimeOption {
	return base.WithClock(now)
}

// Collectors and sink adapters.
func NewPushCollector(sensorID string, info *SensorInfo) *PushCollector {
	return base.NewPushCollector(sensorID, info)
}

func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []StepSample, func()) {
	return base.NewChannelSink(name, buffer)
}
