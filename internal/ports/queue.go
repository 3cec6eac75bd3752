package ports

import "github.com/yelzgniq/cap-android-steps/internal/domain"

type QueuedSample struct {
	ID     WALEntryID
	Sample *domain.StepSample
}

type SampleQueue interface {
	Enqueue(id WALEntryID, s *domain.StepSample) bool
	DequeueBatch(max int) []QueuedSample
	Len() int
}
