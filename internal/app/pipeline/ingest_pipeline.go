package pipeline

import (
	"context"
	"time"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// RunIngestPipeline drains the queue into sink until ctx is done. It is the
// only goroutine writing to the sink, which keeps the step window single-writer.
func RunIngestPipeline(ctx context.Context, wal ports.WAL, q ports.SampleQueue, tr ports.Transformer, sink ports.Sink, pol ports.Policy, obs ports.Observability) {
	idle := idleSleep(pol)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
			}
			continue
		}

		ingestBatch(batch, wal, tr, sink, obs)
	}
}

func ingestBatch(batch []ports.QueuedSample, wal ports.WAL, tr ports.Transformer, sink ports.Sink, obs ports.Observability) {
	var (
		out   = make([]*domain.StepSample, 0, len(batch))
		maxID ports.WALEntryID
	)

	for _, item := range batch {
		if item.ID > maxID {
			maxID = item.ID
		}
		s, err := tr.Transform(item.Sample)
		if err != nil {
			obs.RecordDLQ(item.ID, item.Sample, err)
			continue
		}
		s.TransformVer = tr.Version()
		out = append(out, s)
	}

	if len(out) == 0 {
		commit(wal, maxID, obs)
		return
	}

	start := time.Now()
	if err := sink.WriteBatch(out); err != nil {
		// not committed here; only replayed if nothing later commits past it
		obs.LogError("sink_write_failed", err,
			ports.Field{Key: "sink", Value: sink.Name()},
			ports.Field{Key: "readings", Value: len(out)})
		return
	}
	obs.ObserveLatency("capsteps_ingest_latency_seconds", time.Since(start).Seconds())
	obs.IncCounter("capsteps_samples_ingested_total", float64(len(out)))

	commit(wal, maxID, obs)
}

func commit(wal ports.WAL, upto ports.WALEntryID, obs ports.Observability) {
	if upto == 0 {
		return
	}
	if err := wal.Commit(upto); err != nil {
		obs.LogError("wal_commit_failed", err)
	}
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}
