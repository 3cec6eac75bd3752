package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yelzgniq/cap-android-steps/pkg/capsteps"
)

// Feeds the pipeline from application code instead of a configured source
// and prints every reading that reaches the window.
func main() {
	cfg := capsteps.DefaultConfig()
	cfg.Sensor.Source = capsteps.SourcePush
	cfg.WAL.Dir = os.TempDir() + "/capsteps-callback-wal"

	push := capsteps.NewPushCollector("app", &capsteps.SensorInfo{Name: "App Pedometer", Vendor: "example", Version: 1})

	callback := func(batch []capsteps.StepSample) error {
		for _, s := range batch {
			fmt.Printf("%s sensor=%s seq=%d count=%.0f\n",
				s.Timestamp.Format(time.RFC3339Nano), s.SensorID, s.Seq, s.Count)
		}
		return nil
	}

	flow, err := capsteps.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	rt, err := flow.StreamIN(capsteps.StreamInPush(push)).
		StreamOUT(capsteps.StreamOutCallback("stdout", callback))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	if err := rt.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go walk(ctx, push)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rt.Shutdown(shutdownCtx); err != nil {
				log.Printf("shutdown: %v", err)
			}
			return
		case <-ticker.C:
			if res, err := rt.Steps(capsteps.PeriodHour); err == nil {
				fmt.Printf("steps in the last hour: %d\n", res.Count)
			}
		}
	}
}

func walk(ctx context.Context, push *capsteps.PushCollector) {
	count := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		count += float64(rand.IntN(3))
		if err := push.Push(ctx, count); err != nil && ctx.Err() == nil {
			log.Printf("push: %v", err)
		}
	}
}
