package sink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// Fanout writes every batch to each sink in order. All sinks are attempted;
// the batch fails if any of them failed.
type Fanout []ports.Sink

func (f Fanout) Name() string {
	names := make([]string, len(f))
	for i, s := range f {
		names[i] = s.Name()
	}
	return "fanout(" + strings.Join(names, ",") + ")"
}

func (f Fanout) WriteBatch(samples []*domain.StepSample) error {
	var errs []error
	for _, s := range f {
		if err := s.WriteBatch(samples); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ ports.Sink = Fanout(nil)
