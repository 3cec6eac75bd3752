package transform

import (
	"errors"
	"fmt"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

var ErrInvalidReading = errors.New("invalid step reading")

// Validator drops readings the window cannot use: a missing timestamp or a
// count that is negative, NaN or infinite.
type Validator struct{}

func (Validator) Version() uint16 { return 1 }

func (Validator) Transform(s *domain.StepSample) (*domain.StepSample, error) {
	switch {
	case s == nil:
		return nil, fmt.Errorf("%w: nil reading", ErrInvalidReading)
	case s.Timestamp.IsZero():
		return nil, fmt.Errorf("%w: missing timestamp", ErrInvalidReading)
	case !s.Finite():
		return nil, fmt.Errorf("%w: non-finite value in %v", ErrInvalidReading, s.RawValues())
	case s.Count < 0:
		return nil, fmt.Errorf("%w: negative count %v", ErrInvalidReading, s.Count)
	}
	return s, nil
}

var _ ports.Transformer = Validator{}
