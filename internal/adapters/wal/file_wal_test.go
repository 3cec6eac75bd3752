package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

func TestFileWALAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}

	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s1 := &domain.StepSample{SensorID: "sim-0", Timestamp: ts, Seq: 1, Count: 100}
	s2 := &domain.StepSample{SensorID: "sim-0", Timestamp: ts.Add(time.Minute), Seq: 2, Count: 140, Values: []float64{140}}

	id1, err := w.Append(s1)
	if err != nil || id1 == 0 {
		t.Fatalf("append reading 1: %v id=%d", err, id1)
	}
	id2, err := w.Append(s2)
	if err != nil || id2 == 0 {
		t.Fatalf("append reading 2: %v id=%d", err, id2)
	}

	var counts []float64
	if err := w.Iterate(1, func(id ports.WALEntryID, s *domain.StepSample) error {
		counts = append(counts, s.Count)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(counts) != 2 || counts[0] != 100 || counts[1] != 140 {
		t.Fatalf("unexpected replayed counts %v", counts)
	}

	if err := w.Commit(id1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}

	stats := w2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2, stats.OldestUncommitted)
	}

	var replayed []*domain.StepSample
	if err := w2.Iterate(stats.OldestUncommitted, func(_ ports.WALEntryID, s *domain.StepSample) error {
		replayed = append(replayed, s)
		return nil
	}); err != nil {
		t.Fatalf("iterate after reopen: %v", err)
	}
	if len(replayed) != 1 || !replayed[0].Timestamp.Equal(s2.Timestamp) || replayed[0].Values[0] != 140 {
		t.Fatalf("unexpected replay %+v", replayed)
	}

	if err := appendGarbage(filepath.Join(dir, "steps.wal")); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close wal2: %v", err)
	}

	w3, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer w3.Close()
	if got := w3.Stats().LatestAppended; got != id2 {
		t.Fatalf("expected torn tail to be dropped, latest=%d", got)
	}
}

func TestFileWALTruncateCommitted(t *testing.T) {
	w, err := NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	var last ports.WALEntryID
	for i := 1; i <= 5; i++ {
		id, err := w.Append(&domain.StepSample{Seq: uint64(i), Count: float64(i * 10)})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		last = id
	}
	before := w.Stats().SizeBytes

	if err := w.Commit(3); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	stats := w.Stats()
	if stats.SizeBytes >= before {
		t.Fatalf("expected truncated WAL to shrink: before=%d after=%d", before, stats.SizeBytes)
	}
	if stats.LatestAppended != last {
		t.Fatalf("truncation must keep the id sequence, got %d", stats.LatestAppended)
	}

	var seqs []uint64
	if err := w.Iterate(0, func(_ ports.WALEntryID, s *domain.StepSample) error {
		seqs = append(seqs, s.Seq)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 4 || seqs[1] != 5 {
		t.Fatalf("expected readings 4 and 5 to survive, got %v", seqs)
	}

	id, err := w.Append(&domain.StepSample{Seq: 6})
	if err != nil || id != last+1 {
		t.Fatalf("append after truncate: id=%d err=%v", id, err)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}

func TestFileWALAppendSurvivesCrash(t *testing.T) {
	for _, sync := range []bool{false, true} {
		dir := t.TempDir()
		w, err := NewFileWAL(dir, WithSync(sync))
		if err != nil {
			t.Fatalf("new wal: %v", err)
		}
		t.Cleanup(func() { w.Close() })

		ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		for i := 1; i <= 3; i++ {
			if _, err := w.Append(&domain.StepSample{Seq: uint64(i), Timestamp: ts, Count: float64(i * 100)}); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		// no Commit or Close: reopen as a restarted process would
		crashed, err := NewFileWAL(dir)
		if err != nil {
			t.Fatalf("reopen wal: %v", err)
		}
		stats := crashed.Stats()
		if stats.LatestAppended != 3 || stats.SizeBytes == 0 {
			t.Fatalf("sync=%v: expected 3 appended readings on disk, got %+v", sync, stats)
		}

		var replayable int
		if err := crashed.Iterate(stats.OldestUncommitted, func(ports.WALEntryID, *domain.StepSample) error {
			replayable++
			return nil
		}); err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if replayable != 3 {
			t.Fatalf("sync=%v: expected 3 replayable readings, got %d", sync, replayable)
		}
		crashed.Close()
	}
}
