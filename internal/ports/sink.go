package ports

import "github.com/yelzgniq/cap-android-steps/internal/domain"

type Sink interface {
	WriteBatch(samples []*domain.StepSample) error
	Name() string
}
