package ports

import "github.com/yelzgniq/cap-android-steps/internal/domain"

type WALEntryID uint64

type WAL interface {
	Append(s *domain.StepSample) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, s *domain.StepSample) error) error
	Commit(upto WALEntryID) error
	TruncateCommitted() error
	Stats() WALStats
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
