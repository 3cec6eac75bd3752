// Package mqtt receives step-counter readings published by a companion
// device or phone shell over MQTT.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/sirupsen/logrus"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

type Config struct {
	Broker    string        `yaml:"broker"`
	Topic     string        `yaml:"topic" default:"capsteps/+/steps"`
	ClientID  string        `yaml:"client_id" default:"capsteps-bridge"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	QoS       byte          `yaml:"qos" default:"1"`
	KeepAlive time.Duration `yaml:"keep_alive" default:"30s"`

	SensorName    string `yaml:"sensor_name" default:"MQTT Step Counter"`
	SensorVendor  string `yaml:"sensor_vendor"`
	SensorVersion int    `yaml:"sensor_version" default:"1"`
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if _, err := url.Parse(c.Broker); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.QoS > 1 {
		return errors.New("qos must be 0 or 1")
	}
	return nil
}

// reading is the JSON payload of one published step reading.
type reading struct {
	SensorID string    `json:"sensor_id"`
	TsMillis int64     `json:"ts"`
	Steps    *float64  `json:"steps"`
	Values   []float64 `json:"values"`
	Accuracy string    `json:"accuracy"`
}

type Collector struct {
	cfg Config
	log logrus.FieldLogger
	now func() time.Time

	mu      sync.Mutex
	client  *paho.Client
	remove  func()
	started bool

	// seqMu is separate from mu: publishes can arrive while Start still
	// holds mu waiting for the SUBACK.
	seqMu sync.Mutex
	seq   map[string]uint64
}

func NewCollector(cfg Config, log logrus.FieldLogger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		cfg: cfg,
		log: log.WithField("collector", "mqtt"),
		now: time.Now,
		seq: make(map[string]uint64),
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
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("mqtt collector already started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dial(ctx, c.cfg.Broker)
	if err != nil {
		return fmt.Errorf("mqtt dial %s: %w", c.cfg.Broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: c.cfg.ClientID,
		OnClientError: func(err error) {
			c.log.WithError(err).Error("mqtt client error")
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			c.log.WithField("reason_code", d.ReasonCode).Warn("mqtt server disconnected")
		},
	})

	remove := client.AddOnPublishReceived(func(pr paho.PublishReceived) (bool, error) {
		return c.handle(pr.Packet, out), nil
	})

	connect := &paho.Connect{
		KeepAlive:  uint16(c.cfg.KeepAlive / time.Second),
		ClientID:   c.cfg.ClientID,
		CleanStart: true,
	}
	if c.cfg.Username != "" {
		connect.Username = c.cfg.Username
		connect.UsernameFlag = true
		connect.Password = []byte(c.cfg.Password)
		connect.PasswordFlag = true
	}
	if _, err := client.Connect(ctx, connect); err != nil {
		remove()
		_ = conn.Close()
		return fmt.Errorf("mqtt connect: %w", err)
	}

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: c.cfg.Topic, QoS: c.cfg.QoS}},
	}); err != nil {
		remove()
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return fmt.Errorf("mqtt subscribe %s: %w", c.cfg.Topic, err)
	}

	c.client = client
	c.remove = remove
	c.started = true
	c.log.WithField("topic", c.cfg.Topic).Info("listening for step readings")
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	c.remove()
	err := c.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	c.client = nil
	c.remove = nil
	return err
}

func (c *Collector) handle(p *paho.Publish, out chan<- *domain.StepSample) bool {
	if p == nil {
		return false
	}
	s, err := decodeReading(p.Payload, c.now())
	if err != nil {
		c.log.WithError(err).WithField("topic", p.Topic).Warn("dropping malformed step reading")
		return true
	}
	if s.SensorID == "" {
		s.SensorID = p.Topic
	}
	s.Seq = c.nextSeq(s.SensorID)

	select {
	case out <- s:
	default:
		c.log.WithField("sensor", s.SensorID).Warn("collector channel full, dropping reading")
	}
	return true
}

func (c *Collector) nextSeq(sensor string) uint64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	next := c.seq[sensor] + 1
	c.seq[sensor] = next
	return next
}

// decodeReading parses a published payload. A missing timestamp is stamped
// with now, like a sensor event delivered in real time.
func decodeReading(payload []byte, now time.Time) (*domain.StepSample, error) {
	var r reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode reading: %w", err)
	}

	var count float64
	switch {
	case r.Steps != nil:
		count = *r.Steps
	case len(r.Values) > 0:
		count = r.Values[0]
	default:
		return nil, errors.New("reading carries neither steps nor values")
	}

	ts := now
	if r.TsMillis > 0 {
		ts = time.UnixMilli(r.TsMillis)
	}

	return &domain.StepSample{
		SensorID:  r.SensorID,
		Timestamp: ts,
		Count:     count,
		Values:    r.Values,
		Accuracy:  domain.ParseAccuracy(r.Accuracy),
	}, nil
}

func dial(ctx context.Context, broker string) (net.Conn, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return nil, err
	}
	host := u.Host
	if host == "" {
		host = broker
	}
	if u.Port() == "" && u.Host != "" {
		host = net.JoinHostPort(u.Hostname(), "1883")
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", host)
}

var _ ports.Collector = (*Collector)(nil)
