package capsteps

import (
	"github.com/yelzgniq/cap-android-steps/internal/app/bridge"
	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// StepSample is a single cumulative step-counter reading as it flows through
// the WAL→queue→window pipeline.
type StepSample = domain.StepSample

// SensorInfo describes the step sensor a collector reads from.
type SensorInfo = domain.SensorInfo

// Accuracy is the sensor-reported accuracy of a reading.
type Accuracy = domain.Accuracy

const (
	AccuracyUnknown    = domain.AccuracyUnknown
	AccuracyUnreliable = domain.AccuracyUnreliable
	AccuracyLow        = domain.AccuracyLow
	AccuracyMedium     = domain.AccuracyMedium
	AccuracyHigh       = domain.AccuracyHigh
)

// Period selects the interval of an aggregate step count.
type Period = domain.Period

const (
	PeriodHour = domain.PeriodHour
	PeriodDay  = domain.PeriodDay
	PeriodAll  = domain.PeriodAll
)

// PermissionResult is the resolved value of a permission request.
type PermissionResult = domain.PermissionResult

// PermissionState is what the host reports for one permission.
type PermissionState = domain.PermissionState

const (
	PermissionPrompt  = domain.PermissionPrompt
	PermissionGranted = domain.PermissionGranted
	PermissionDenied  = domain.PermissionDenied
)

// PermissionRequest is a prompt waiting for the host to show it.
type PermissionRequest = domain.PermissionRequest

// ActivityRecognition is the runtime permission guarding step data.
const ActivityRecognition = domain.ActivityRecognition

// Plugin call results, as serialized by the HTTP envelope.
type (
	StepCountResult    = bridge.StepCountResult
	SensorValuesResult = bridge.SensorValuesResult
	Rejection          = bridge.Rejection
	RejectionCode      = bridge.Code
)

// QueuedSample represents an item buffered inside the bounded queue.
type QueuedSample = ports.QueuedSample

// Collector streams readings from a step sensor source into the pipeline.
type Collector = ports.Collector

// SampleQueue is the bounded, in-memory queue between collector and window.
type SampleQueue = ports.SampleQueue

// Transformer validates or adjusts readings before they reach the sinks.
type Transformer = ports.Transformer

// Sink consumes ordered batches of readings.
type Sink = ports.Sink

// Observability emits metrics and logs about throughput, latency and rejects.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// PermissionHost is the platform side of the runtime permission flow.
type PermissionHost = ports.PermissionHost

// WAL abstracts the write-ahead log used for crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID
