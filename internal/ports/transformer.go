package ports

import "github.com/yelzgniq/cap-android-steps/internal/domain"

type Transformer interface {
	Transform(*domain.StepSample) (*domain.StepSample, error)
	Version() uint16
}
