package ports

import "github.com/yelzgniq/cap-android-steps/internal/domain"

// Collector delivers step readings from a sensor source. Sensor reports false
// when the source has no step-counter sensor to listen to.
type Collector interface {
	Start(out chan<- *domain.StepSample) error
	Stop() error
	Sensor() (domain.SensorInfo, bool)
}
