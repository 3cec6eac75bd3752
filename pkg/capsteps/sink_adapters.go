package capsteps

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("capsteps: channel sink closed")

// SampleBatchSink is invoked with ordered batches of validated readings.
type SampleBatchSink func([]StepSample) error

// NewCallbackSink adapts a SampleBatchSink into a Sink so callers can observe
// readings next to the step window without defining structs.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []StepSample, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []StepSample, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   SampleBatchSink
}

func (s *callbackSink) WriteBatch(samples []*StepSample) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(samples) == 0 {
		return nil
	}
	return s.fn(copyBatch(samples))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []StepSample
	closed chan struct{}
	once   sync.Once

	// sending is held for reading while a batch is in flight so close never
	// closes ch under a pending send.
	sending sync.RWMutex
}

func (s *channelSink) WriteBatch(samples []*StepSample) error {
	s.sending.RLock()
	defer s.sending.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(samples) == 0 {
		return nil
	}

	batch := copyBatch(samples)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.sending.Lock()
		close(s.ch)
		s.sending.Unlock()
	})
}

// copyBatch detaches readings from the pipeline so receivers may keep them.
func copyBatch(samples []*StepSample) []StepSample {
	out := make([]StepSample, len(samples))
	for i, s := range samples {
		out[i] = *s
		out[i].Values = append([]float64(nil), s.Values...)
	}
	return out
}
