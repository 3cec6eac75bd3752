package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, logrus.New())

	obs.IncCounter("capsteps_samples_ingested_total", 5)
	if got := testutil.ToFloat64(obs.counters["capsteps_samples_ingested_total"]); got != 5 {
		t.Fatalf("expected ingested counter 5, got %f", got)
	}

	obs.IncCounter("capsteps_counter_resets_total", 1)
	if got := testutil.ToFloat64(obs.counters["capsteps_counter_resets_total"]); got != 1 {
		t.Fatalf("expected reset counter 1, got %f", got)
	}

	obs.SetGauge("capsteps_window_samples", 42)
	if got := testutil.ToFloat64(obs.gauges["capsteps_window_samples"]); got != 42 {
		t.Fatalf("expected window gauge 42, got %f", got)
	}

	obs.ObserveLatency("capsteps_ingest_latency_seconds", 0.5)
	hCollector := obs.histos["capsteps_ingest_latency_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	obs.RecordDLQ(1, nil, nil)
	if got := testutil.ToFloat64(obs.counters["capsteps_dlq_total"]); got != 1 {
		t.Fatalf("expected dlq counter 1, got %f", got)
	}

	obs.IncCounter("unknown_metric", 1)
	obs.SetGauge("unknown_gauge", 1)
}

func TestPromObsLogsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	obs := NewPromObs(prometheus.NewRegistry(), logger)
	obs.LogInfo("sensor_started", ports.Field{Key: "sensor", Value: "sim-0"})
	obs.LogError("sink_write_failed", errors.New("boom"))
	obs.LogError("ignored", nil)
	obs.RecordDLQ(7, &domain.StepSample{SensorID: "sim-0", Seq: 3}, errors.New("negative count"))

	out := buf.String()
	for _, want := range []string{
		`msg=sensor_started sensor=sim-0`,
		`error=boom`,
		`msg=reading_rejected`,
		`wal_id=7`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ignored") {
		t.Fatalf("nil errors must not be logged")
	}
}
