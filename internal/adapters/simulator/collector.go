// Package simulator provides a synthetic step counter for demos and tests.
package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

type Config struct {
	SensorID string        `yaml:"sensor_id" default:"simulated-step-counter"`
	Interval time.Duration `yaml:"interval" default:"1s"`
	// Cadence is the mean walking rate in steps per minute.
	Cadence float64 `yaml:"cadence" default:"100"`
	// StartCount seeds the counter, as if the device had been counting since boot.
	StartCount float64 `yaml:"start_count"`
	// ResetEvery simulates a device reboot after that many readings; 0 disables it.
	ResetEvery int `yaml:"reset_every"`
}

func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if c.Cadence < 0 {
		return fmt.Errorf("cadence must be >= 0")
	}
	return nil
}

// Collector emits cumulative readings on a ticker.
type Collector struct {
	cfg  Config
	now  func() time.Time
	rand *rand.Rand

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	count   float64
	seq     uint64
	started bool
}

func NewCollector(cfg Config) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{
		cfg:   cfg,
		now:   time.Now,
		rand:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		count: cfg.StartCount,
	}, nil
}

func (c *Collector) Sensor() (domain.SensorInfo, bool) {
	return domain.SensorInfo{Name: "Simulated Step Counter", Vendor: "capsteps", Version: 1}, true
}

func (c *Collector) Start(out chan<- *domain.StepSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("simulator collector already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	c.wg.Add(1)
	go c.run(ctx, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}

func (c *Collector) run(ctx context.Context, out chan<- *domain.StepSample) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.next()
			select {
			case <-ctx.Done():
				return
			case out <- s:
			}
		}
	}
}

// next advances the simulated counter by one interval.
func (c *Collector) next() *domain.StepSample {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if c.cfg.ResetEvery > 0 && c.seq%uint64(c.cfg.ResetEvery) == 0 {
		c.count = 0
	} else {
		mean := c.cfg.Cadence * c.cfg.Interval.Minutes()
		// +/-20% jitter around the cadence
		c.count += float64(int(mean * (0.8 + 0.4*c.rand.Float64())))
	}

	return &domain.StepSample{
		SensorID:  c.cfg.SensorID,
		Timestamp: c.now(),
		Seq:       c.seq,
		Count:     c.count,
		Values:    []float64{c.count},
		Accuracy:  domain.AccuracyHigh,
	}
}

var _ ports.Collector = (*Collector)(nil)
