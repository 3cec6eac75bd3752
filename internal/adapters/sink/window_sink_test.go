package sink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelzgniq/cap-android-steps/internal/aggregator"
	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

func TestWindowSinkIngestsAndRemembersLatest(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	agg := aggregator.New(aggregator.WithClock(func() time.Time { return ts.Add(30 * time.Minute) }))
	obs := &recordingObs{}
	w := NewWindowSink(agg, obs)

	_, ok := w.Latest()
	require.False(t, ok)

	err := w.WriteBatch([]*domain.StepSample{
		{SensorID: "sim-0", Timestamp: ts, Count: 100},
		{SensorID: "sim-0", Timestamp: ts.Add(30 * time.Minute), Count: 140, Values: []float64{140, 1}},
	})
	require.NoError(t, err)

	res, err := agg.QueryDelta(domain.PeriodHour)
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.Count)

	latest, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, 140.0, latest.Count)
	assert.Equal(t, []float64{140, 1}, latest.Values)
	assert.Equal(t, 2.0, obs.gauges["capsteps_window_samples"])

	latest.Values[0] = -1
	again, _ := w.Latest()
	assert.Equal(t, 140.0, again.Values[0], "Latest must return a copy")
}

func TestWindowSinkLogsAccuracyChanges(t *testing.T) {
	obs := &recordingObs{}
	w := NewWindowSink(aggregator.New(), obs)
	now := time.Now()

	require.NoError(t, w.WriteBatch([]*domain.StepSample{
		{Timestamp: now, Count: 1, Accuracy: domain.AccuracyHigh},
		{Timestamp: now, Count: 2, Accuracy: domain.AccuracyHigh},
		{Timestamp: now, Count: 3, Accuracy: domain.AccuracyUnreliable},
		{Timestamp: now, Count: 4},
	}))

	assert.Equal(t, []string{"sensor_accuracy_changed"}, obs.infos)
	assert.Equal(t, []string{"sensor_accuracy_changed"}, obs.warns)
}

func TestFanoutWritesAllAndJoinsErrors(t *testing.T) {
	good := &countingSink{name: "good"}
	bad := &countingSink{name: "bad", err: errors.New("down")}
	after := &countingSink{name: "after"}

	f := Fanout{good, bad, after}
	err := f.WriteBatch([]*domain.StepSample{{Count: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 1, after.calls)
	assert.Equal(t, "fanout(good,bad,after)", f.Name())
}

type countingSink struct {
	name  string
	err   error
	calls int
}

func (c *countingSink) WriteBatch([]*domain.StepSample) error {
	c.calls++
	return c.err
}
func (c *countingSink) Name() string { return c.name }

type recordingObs struct {
	infos  []string
	warns  []string
	gauges map[string]float64
}

func (o *recordingObs) LogInfo(msg string, _ ...ports.Field) { o.infos = append(o.infos, msg) }
func (o *recordingObs) LogWarn(msg string, _ ...ports.Field) { o.warns = append(o.warns, msg) }
func (o *recordingObs) LogError(string, error, ...ports.Field)    {}
func (o *recordingObs) LogCritical(string, error, ...ports.Field) {}
func (o *recordingObs) IncCounter(string, float64)                {}
func (o *recordingObs) ObserveLatency(string, float64)            {}
func (o *recordingObs) SetGauge(name string, v float64) {
	if o.gauges == nil {
		o.gauges = make(map[string]float64)
	}
	o.gauges[name] = v
}
func (o *recordingObs) RecordDLQ(ports.WALEntryID, *domain.StepSample, error) {}
