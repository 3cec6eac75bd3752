// Package opcua reads a cumulative step counter exposed as an OPC UA variable,
// as published by wearable gateways and fitness-equipment controllers.
package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/sirupsen/logrus"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

const stepHandle uint32 = 1

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode" default:"None"`
	SecurityPolicy   string        `yaml:"security_policy" default:"None"`
	ApplicationName  string        `yaml:"application_name" default:"capsteps bridge"`
	PublishInterval  time.Duration `yaml:"publish_interval" default:"1s"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`

	// StepNode is the node id of the cumulative step count, e.g. "ns=2;s=Pedometer.Steps".
	StepNode string `yaml:"step_node"`
	SensorID string `yaml:"sensor_id"`

	SensorName    string `yaml:"sensor_name" default:"OPC UA Step Counter"`
	SensorVendor  string `yaml:"sensor_vendor"`
	SensorVersion int    `yaml:"sensor_version" default:"1"`
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.StepNode == "" {
		return errors.New("step_node is required")
	}
	if _, err := ua.ParseNodeID(c.StepNode); err != nil {
		return fmt.Errorf("step_node %q: %w", c.StepNode, err)
	}
	if c.PublishInterval <= 0 {
		return errors.New("publish_interval must be > 0")
	}
	return nil
}

type Collector struct {
	cfg Config
	log logrus.FieldLogger

	mu      sync.Mutex
	client  *opcua.Client
	sub     *opcua.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	seq     uint64
	started bool
}

func NewCollector(cfg Config, log logrus.FieldLogger) (*Collector, error) {
	if cfg.SensorID == "" {
		cfg.SensorID = cfg.StepNode
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		cfg: cfg,
		log: log.WithFields(logrus.Fields{"collector": "opcua", "node": cfg.StepNode}),
	}, nil
}

func (c *Collector) Sensor() (domain.SensorInfo, bool) {
	return domain.SensorInfo{
		Name:    c.cfg.SensorName,
		Vendor:  c.cfg.SensorVendor,
		Version: c.cfg.SensorVersion,
	}, true
}

func (c *Collector) Start(out chan<- *domain.StepSample) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("opcua collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	client, err := opcua.NewClient(c.cfg.Endpoint, c.clientOptions()...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("opcua connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, 16)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	if err := c.monitor(ctx, sub); err != nil {
		cancel()
		_ = sub.Cancel(ctx)
		_ = client.Close(ctx)
		return err
	}

	c.mu.Lock()
	c.client = client
	c.sub = sub
	c.cancel = cancel
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.consume(ctx, notifyCh, out)
	return nil
}

func (c *Collector) monitor(ctx context.Context, sub *opcua.Subscription) error {
	nodeID, err := ua.ParseNodeID(c.cfg.StepNode)
	if err != nil {
		return fmt.Errorf("parse node id %q: %w", c.cfg.StepNode, err)
	}
	req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, stepHandle)
	if c.cfg.SamplingInterval > 0 {
		req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
	}
	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
	if err != nil {
		return fmt.Errorf("monitor node %q: %w", c.cfg.StepNode, err)
	}
	if len(res.Results) == 0 {
		return fmt.Errorf("monitor node %q failed: empty result", c.cfg.StepNode)
	}
	if res.Results[0].StatusCode != ua.StatusOK {
		return fmt.Errorf("monitor node %q failed: %s", c.cfg.StepNode, res.Results[0].StatusCode)
	}
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel, sub, client := c.cancel, c.sub, c.client
	c.started = false
	c.cancel, c.sub, c.client = nil, nil, nil
	c.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
		err = errors.Join(err, e)
	}
	if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
		err = errors.Join(err, e)
	}

	c.wg.Wait()
	return err
}

func (c *Collector) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData, out chan<- *domain.StepSample) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.log.WithError(notif.Error).Warn("notification error")
				continue
			}
			data, ok := notif.Value.(*ua.DataChangeNotification)
			if !ok {
				continue
			}
			for _, item := range data.MonitoredItems {
				s, err := c.toSample(item, time.Now())
				if err != nil {
					c.log.WithError(err).Debug("skipping notification")
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- s:
				}
			}
		}
	}
}

// toSample converts a data change on the step node. Server time wins over
// source time; readings without either are stamped with now.
func (c *Collector) toSample(item *ua.MonitoredItemNotification, now time.Time) (*domain.StepSample, error) {
	if item == nil || item.ClientHandle != stepHandle || item.Value == nil {
		return nil, errors.New("not a step counter notification")
	}
	if item.Value.Status != ua.StatusOK {
		return nil, fmt.Errorf("bad status %s", item.Value.Status)
	}
	if item.Value.Value == nil {
		return nil, errors.New("empty value")
	}
	count, ok := variantToFloat(item.Value.Value)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T", item.Value.Value.Value())
	}

	ts := item.Value.ServerTimestamp
	if ts.IsZero() {
		ts = item.Value.SourceTimestamp
	}
	if ts.IsZero() {
		ts = now
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	return &domain.StepSample{
		SensorID:  c.cfg.SensorID,
		Timestamp: ts,
		Seq:       seq,
		Count:     count,
		Values:    []float64{count},
		Accuracy:  domain.AccuracyHigh,
	}, nil
}

func (c *Collector) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Collector = (*Collector)(nil)
