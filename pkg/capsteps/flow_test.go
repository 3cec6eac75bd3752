package capsteps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yelzgniq/cap-android-steps/internal/adapters/sink"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := testConfig(t)

	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithLogger(quietLogger())))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	col := &stubCollector{}
	out := &stubSink{}
	host := &stubHost{}

	rt, err := flow.
		StreamIN(
			StreamInCollector(col),
			StreamInPermissionHost(host),
			StreamInObservability(&stubObservability{}),
		).
		StreamOUT(
			StreamOutSink(out),
			StreamOutTransformer(&stubTransformer{}),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if rt.collector != col {
		t.Fatalf("expected custom collector to be wired")
	}
	fan := rt.sink.(sink.Fanout)
	if fan[len(fan)-1] != out {
		t.Fatalf("expected custom sink to be wired")
	}
	if rt.broker.Granted(ActivityRecognition) {
		t.Fatalf("expected custom permission host to gate access")
	}
}

func TestConfLoadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "sensor:\n  source: push\nwal:\n  dir: " + filepath.Join(dir, "wal") + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flow, err := Conf(path)
	if err != nil {
		t.Fatalf("Conf returned error: %v", err)
	}
	if flow.Config().Sensor.Source != SourcePush {
		t.Fatalf("expected push source, got %q", flow.Config().Sensor.Source)
	}

	if _, err := Conf(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestFlowRunUsesStreamOutOptions(t *testing.T) {
	flow, err := ConfFromConfig(testConfig(t), WithFlowOptions(WithLogger(quietLogger())))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	push := NewPushCollector("walker", &SensorInfo{Name: "walker"})
	if err := flow.StreamIN(StreamInPush(push)).Run(ctx,
		StreamOutCallback("cb", func([]StepSample) error { return nil }),
	); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if push.Listening() {
		t.Fatalf("expected push collector to be stopped after Run returned")
	}
}

func TestNilFlow(t *testing.T) {
	var f *Flow
	if f.Config() != nil || f.StreamIN() != nil {
		t.Fatalf("expected nil flow to stay nil")
	}
	if _, err := f.StreamOUT(); err == nil {
		t.Fatalf("expected error from nil flow")
	}
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

type stubHost struct{}

func (stubHost) RuntimePermissionsRequired() bool            { return true }
func (stubHost) Check(string) PermissionState                { return PermissionDenied }
func (stubHost) Prompt(context.Context, int, []string) error { return nil }
