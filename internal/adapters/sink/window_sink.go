package sink

import (
	"sync"

	"github.com/yelzgniq/cap-android-steps/internal/aggregator"
	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// WindowSink feeds readings into the step window and remembers the most
// recent raw reading for callers that want the unaggregated values.
type WindowSink struct {
	agg *aggregator.Aggregator
	obs ports.Observability

	mu       sync.RWMutex
	latest   *domain.StepSample
	accuracy domain.Accuracy
}

func NewWindowSink(agg *aggregator.Aggregator, obs ports.Observability) *WindowSink {
	return &WindowSink{agg: agg, obs: obs}
}

func (w *WindowSink) Name() string { return "window" }

func (w *WindowSink) WriteBatch(samples []*domain.StepSample) error {
	for _, s := range samples {
		w.agg.Ingest(s.Timestamp, s.Count)
		w.remember(s)
	}
	if len(samples) > 0 {
		w.obs.SetGauge("capsteps_window_samples", float64(w.agg.Len()))
	}
	return nil
}

func (w *WindowSink) remember(s *domain.StepSample) {
	cp := *s
	cp.Values = append([]float64(nil), s.RawValues()...)

	w.mu.Lock()
	w.latest = &cp
	changed := s.Accuracy != domain.AccuracyUnknown && s.Accuracy != w.accuracy
	if changed {
		w.accuracy = s.Accuracy
	}
	w.mu.Unlock()

	if changed {
		w.logAccuracy(s)
	}
}

func (w *WindowSink) logAccuracy(s *domain.StepSample) {
	fields := []ports.Field{
		{Key: "sensor", Value: s.SensorID},
		{Key: "accuracy", Value: s.Accuracy.String()},
	}
	switch s.Accuracy {
	case domain.AccuracyUnreliable, domain.AccuracyLow:
		w.obs.LogWarn("sensor_accuracy_changed", fields...)
	default:
		w.obs.LogInfo("sensor_accuracy_changed", fields...)
	}
}

// Latest returns a copy of the most recent reading.
func (w *WindowSink) Latest() (domain.StepSample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.latest == nil {
		return domain.StepSample{}, false
	}
	cp := *w.latest
	cp.Values = append([]float64(nil), w.latest.Values...)
	return cp, true
}

var _ ports.Sink = (*WindowSink)(nil)
