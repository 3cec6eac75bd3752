package capsteps

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPushCollectorFillsReading(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := NewPushCollector("", &SensorInfo{Name: "Step Counter", Vendor: "acme", Version: 3})
	p.now = func() time.Time { return now }

	out := make(chan *StepSample, 2)
	if err := p.Start(out); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := p.Start(out); err == nil {
		t.Fatalf("expected second Start to fail")
	}

	extra := []float64{1.5}
	if err := p.Push(context.Background(), 42, extra...); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}
	extra[0] = 9

	got := <-out
	if got.SensorID != "push" || got.Seq != 1 || !got.Timestamp.Equal(now) {
		t.Fatalf("unexpected reading metadata: %+v", got)
	}
	if got.Count != 42 || len(got.Values) != 2 || got.Values[0] != 42 || got.Values[1] != 1.5 {
		t.Fatalf("unexpected reading values: %+v", got)
	}

	ts := now.Add(-time.Minute)
	if err := p.PushSample(context.Background(), StepSample{SensorID: "wrist", Timestamp: ts, Count: 50}); err != nil {
		t.Fatalf("PushSample returned error: %v", err)
	}
	got = <-out
	if got.SensorID != "wrist" || got.Seq != 2 || !got.Timestamp.Equal(ts) {
		t.Fatalf("expected caller fields to win: %+v", got)
	}

	info, ok := p.Sensor()
	if !ok || info.Vendor != "acme" {
		t.Fatalf("unexpected sensor info: %+v %v", info, ok)
	}
}

func TestPushCollectorStopped(t *testing.T) {
	p := NewPushCollector("walker", nil)
	if _, ok := p.Sensor(); ok {
		t.Fatalf("expected no sensor for nil info")
	}
	if err := p.Push(context.Background(), 1); !errors.Is(err, ErrCollectorStopped) {
		t.Fatalf("expected ErrCollectorStopped, got %v", err)
	}

	out := make(chan *StepSample)
	_ = p.Start(out)
	_ = p.Stop()
	if p.Listening() {
		t.Fatalf("expected collector to stop listening")
	}
	if err := p.Push(context.Background(), 1); !errors.Is(err, ErrCollectorStopped) {
		t.Fatalf("expected ErrCollectorStopped after Stop, got %v", err)
	}
}

func TestPushCollectorHonoursContext(t *testing.T) {
	p := NewPushCollector("walker", &SensorInfo{})
	_ = p.Start(make(chan *StepSample))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Push(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded on a full pipeline, got %v", err)
	}
}
