package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

type PromObs struct {
	log      logrus.FieldLogger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the bridge metrics with reg (the default registerer
// when nil) and logs through logger (the logrus standard logger when nil).
func NewPromObs(reg prometheus.Registerer, logger logrus.FieldLogger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capsteps_samples_ingested_total",
		Help: "Step readings delivered to the window and archive sinks.",
	})
	walGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capsteps_wal_size_bytes",
		Help: "Size of the reading WAL on disk.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capsteps_queue_length",
		Help: "Readings waiting in the in-memory queue.",
	})
	windowGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capsteps_window_samples",
		Help: "Readings retained in the 24h step window.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "capsteps_ingest_latency_seconds",
		Help:    "Time spent writing a dequeued batch to the sinks.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capsteps_dlq_total",
		Help: "Readings rejected by the validator.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capsteps_queue_dropped_total",
		Help: "Readings lost to queue backpressure policies.",
	})
	resets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capsteps_counter_resets_total",
		Help: "Times the cumulative step counter went backwards.",
	})
	permRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capsteps_permission_requests_total",
		Help: "Activity recognition permission requests received.",
	})

	reg.MustRegister(ingested, walGauge, queueGauge, windowGauge, latency, dlq, queueDrops, resets, permRequests)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			"capsteps_samples_ingested_total":    ingested,
			"capsteps_dlq_total":                 dlq,
			"capsteps_queue_dropped_total":       queueDrops,
			"capsteps_counter_resets_total":      resets,
			"capsteps_permission_requests_total": permRequests,
		},
		gauges: map[string]prometheus.Gauge{
			"capsteps_wal_size_bytes": walGauge,
			"capsteps_queue_length":   queueGauge,
			"capsteps_window_samples": windowGauge,
		},
		histos: map[string]prometheus.Observer{
			"capsteps_ingest_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.entry(fields).Info(msg)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.entry(fields).Warn(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.entry(fields).WithError(err).Error(msg)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.entry(fields).WithError(err).WithField("critical", true).Error(msg)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDLQ(id ports.WALEntryID, s *domain.StepSample, err error) {
	p.IncCounter("capsteps_dlq_total", 1)
	if err == nil {
		return
	}
	e := p.log.WithError(err).WithField("wal_id", uint64(id))
	if s != nil {
		e = e.WithFields(logrus.Fields{"sensor": s.SensorID, "seq": s.Seq})
	}
	e.Warn("reading_rejected")
}

func (p *PromObs) entry(fields []ports.Field) *logrus.Entry {
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = f.Value
	}
	return p.log.WithFields(lf)
}

var _ ports.Observability = (*PromObs)(nil)
