package queue

import (
	"sync"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// MemQueue is a bounded FIFO of WAL-backed step readings between the
// collector goroutine and the single window writer.
type MemQueue struct {
	mu       sync.Mutex
	readings []ports.QueuedSample
	limit    int
}

func NewMemQueue(limit int) *MemQueue {
	if limit <= 0 {
		limit = 1
	}
	return &MemQueue{
		readings: make([]ports.QueuedSample, 0, min(limit, 1024)),
		limit:    limit,
	}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, s *domain.StepSample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.readings) >= q.limit {
		return false
	}
	q.readings = append(q.readings, ports.QueuedSample{ID: id, Sample: s})
	return true
}

// DequeueBatch pops up to max readings; max <= 0 takes everything queued.
func (q *MemQueue) DequeueBatch(max int) []ports.QueuedSample {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.readings)
	if n == 0 {
		return nil
	}
	if max > 0 && max < n {
		n = max
	}
	batch := make([]ports.QueuedSample, n)
	copy(batch, q.readings[:n])
	rest := copy(q.readings, q.readings[n:])
	clear(q.readings[rest:])
	q.readings = q.readings[:rest]
	return batch
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.readings)
}

var _ ports.SampleQueue = (*MemQueue)(nil)
