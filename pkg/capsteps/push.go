package capsteps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// ErrCollectorStopped is returned by Push when the collector is not listening,
// either because it was never started or because the permission gate has not
// opened yet.
var ErrCollectorStopped = errors.New("capsteps: push collector not listening")

// PushCollector is a Collector for embedders that own the sensor callback:
// every Push becomes one reading in the pipeline.
type PushCollector struct {
	sensorID string
	info     *SensorInfo
	now      func() time.Time

	mu  sync.RWMutex
	out chan<- *domain.StepSample
	seq uint64
}

// NewPushCollector creates a collector for sensorID. A nil info reports that
// the device has no step sensor.
func NewPushCollector(sensorID string, info *SensorInfo) *PushCollector {
	if sensorID == "" {
		sensorID = "push"
	}
	var cp *SensorInfo
	if info != nil {
		v := *info
		cp = &v
	}
	return &PushCollector{sensorID: sensorID, info: cp, now: time.Now}
}

func (p *PushCollector) Sensor() (SensorInfo, bool) {
	if p.info == nil {
		return SensorInfo{}, false
	}
	return *p.info, true
}

func (p *PushCollector) Start(out chan<- *domain.StepSample) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		return fmt.Errorf("push collector already started")
	}
	p.out = out
	return nil
}

func (p *PushCollector) Stop() error {
	p.mu.Lock()
	p.out = nil
	p.mu.Unlock()
	return nil
}

// Listening reports whether pushed readings currently reach the pipeline.
func (p *PushCollector) Listening() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.out != nil
}

// Push delivers a cumulative step count. Extra raw values the sensor reported
// may follow; the count is always values[0] of the stored reading.
func (p *PushCollector) Push(ctx context.Context, count float64, extra ...float64) error {
	return p.PushSample(ctx, StepSample{
		Count:  count,
		Values: append([]float64{count}, extra...),
	})
}

// PushSample delivers a fully populated reading. Missing sensor id, timestamp
// and sequence number are filled in.
func (p *PushCollector) PushSample(ctx context.Context, s StepSample) error {
	p.mu.Lock()
	out := p.out
	if out == nil {
		p.mu.Unlock()
		return ErrCollectorStopped
	}
	p.seq++
	if s.Seq == 0 {
		s.Seq = p.seq
	}
	p.mu.Unlock()

	if s.SensorID == "" {
		s.SensorID = p.sensorID
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = p.now()
	}
	s.Values = append([]float64(nil), s.Values...)

	select {
	case out <- &s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ports.Collector = (*PushCollector)(nil)
