package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// ErrNonFiniteReading marks readings the WAL cannot encode.
var ErrNonFiniteReading = errors.New("non-finite step reading")

// RunEdgePipeline starts col and moves every reading it delivers into the
// WAL and then the queue, applying the backpressure policy. The forwarding
// goroutine exits when ctx is done.
func RunEdgePipeline(ctx context.Context, col ports.Collector, wal ports.WAL, q ports.SampleQueue, pol ports.Policy, obs ports.Observability) error {
	ch := make(chan *domain.StepSample, max(pol.MaxQueueLen, 1))

	if err := col.Start(ch); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-ch:
				if s == nil {
					continue
				}
				Forward(ctx, s, wal, q, pol, obs)
			}
		}
	}()

	return nil
}

// Forward appends s to the WAL and enqueues it. It reports false when the
// reading did not reach the queue. Non-finite readings go to the DLQ without
// touching the WAL.
func Forward(ctx context.Context, s *domain.StepSample, wal ports.WAL, q ports.SampleQueue, pol ports.Policy, obs ports.Observability) bool {
	if !s.Finite() {
		obs.RecordDLQ(0, s, fmt.Errorf("%w: %v", ErrNonFiniteReading, s.RawValues()))
		return false
	}
	if !waitForWALCapacity(ctx, wal, pol, obs) {
		return false
	}

	id, err := wal.Append(s)
	if err != nil {
		obs.LogCritical("wal_append_failed", err)
		return false
	}

	if !enqueueWithPolicy(ctx, q, id, s, pol, obs) {
		// a reading left behind by shutdown stays in the WAL for replay
		if ctx.Err() == nil {
			obs.IncCounter("capsteps_queue_dropped_total", 1)
		}
		return false
	}
	return true
}

func waitForWALCapacity(ctx context.Context, wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := idleSleep(pol)

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			if !pause(ctx, sleep) {
				return false
			}
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithPolicy(ctx context.Context, q ports.SampleQueue, id ports.WALEntryID, s *domain.StepSample, pol ports.Policy, obs ports.Observability) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(id, s); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			if !pause(ctx, sleep) {
				return false
			}
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

// pause sleeps for d and reports false if ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Replay re-enqueues WAL entries that were never committed.
func Replay(wal ports.WAL, q ports.SampleQueue, pol ports.Policy, obs ports.Observability) (int, error) {
	stats := wal.Stats()
	if stats.LatestAppended == 0 {
		return 0, nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return 0, nil
	}

	sleep := idleSleep(pol)
	var replayed int
	err := wal.Iterate(start, func(id ports.WALEntryID, s *domain.StepSample) error {
		for {
			if q.Enqueue(id, s) {
				replayed++
				return nil
			}
			switch pol.OnQueueFull {
			case "drop", "reject":
				return fmt.Errorf("queue full during WAL replay")
			default:
				time.Sleep(sleep)
			}
		}
	})
	if err != nil {
		return replayed, err
	}
	if replayed > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "readings", Value: replayed},
			ports.Field{Key: "from_id", Value: uint64(start)})
	}
	return replayed, nil
}
