package capsteps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yelzgniq/cap-android-steps/internal/adapters/hostperm"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/mqtt"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/observability"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/opcua"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/queue"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/simulator"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/sink"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/transform"
	"github.com/yelzgniq/cap-android-steps/internal/adapters/wal"
	"github.com/yelzgniq/cap-android-steps/internal/aggregator"
	"github.com/yelzgniq/cap-android-steps/internal/app/bridge"
	"github.com/yelzgniq/cap-android-steps/internal/app/config"
	"github.com/yelzgniq/cap-android-steps/internal/app/pipeline"
	"github.com/yelzgniq/cap-android-steps/internal/permission"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

const (
	gaugeInterval      = time.Second
	walCompactInterval = time.Minute
)

// ErrSensorUnavailable is reported when the collector has no step sensor.
var ErrSensorUnavailable = permission.ErrSensorUnavailable

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	sinks         []Sink
	transformer   Transformer
	wal           WAL
	queue         SampleQueue
	observability Observability
	host          PermissionHost
	logger        *logrus.Logger
	registry      *prometheus.Registry
	clock         func() time.Time
}

// WithCollector injects a custom collector (push, BLE bridge, replay file, etc.).
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSink adds a sink next to the step window. It may be given several times.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithTransformer overrides the default reading validator.
func WithTransformer(t Transformer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.transformer = t
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an existing instance.
func WithWAL(w WAL) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithSampleQueue injects a custom queue implementation.
func WithSampleQueue(q SampleQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithPermissionHost replaces the host selected by permission.mode. If the
// host also queues prompts (Next/Record) the HTTP host endpoints serve it.
func WithPermissionHost(h PermissionHost) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.host = h
	}
}

// WithLogger replaces the logger built from the log section.
func WithLogger(l *logrus.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithClock replaces time.Now as the reference for step queries.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = now
	}
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	WAL                WALStats
	QueueLen           int
	WindowSamples      int
	Listening          bool
	PendingPermissions int
}

// Runtime owns the step window and wires the collector → WAL → queue → window
// pipeline, the permission broker and the plugin call server.
type Runtime struct {
	cfg         *Config
	policy      ports.Policy
	log         logrus.FieldLogger
	registry    *prometheus.Registry
	obs         ports.Observability
	wal         ports.WAL
	queue       ports.SampleQueue
	collector   ports.Collector
	transformer ports.Transformer
	sink        ports.Sink
	window      *aggregator.Aggregator
	windowSink  *sink.WindowSink
	broker      *permission.Broker
	plugin      *bridge.Plugin
	mux         *http.ServeMux
	db          *sql.DB

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	listening  bool
	bridgeSrv  *http.Server
	bridgeAddr net.Addr
	metricsSrv *http.Server
	gaugeStop  chan struct{}
	ingestDone chan struct{}
	background sync.WaitGroup
	closeOnce  sync.Once
}

// NewRuntime builds the default adapters from cfg (collector by sensor.source,
// file WAL, in-memory queue, validator, step window, optional Timescale archive,
// Prometheus observability). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	logger := overrides.logger
	if logger == nil {
		logger = cfg.Logger()
	}

	registry := overrides.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(registry, logger)
	}

	r := &Runtime{
		cfg:      cfg,
		policy:   cfg.Policy,
		log:      logger.WithField("component", "runtime"),
		registry: registry,
		obs:      obs,
	}
	defer func() {
		if err != nil {
			_ = r.closeResources()
		}
	}()

	r.wal = overrides.wal
	if r.wal == nil {
		if r.wal, err = wal.NewFileWAL(cfg.WAL.Dir, wal.WithSync(cfg.WAL.Sync)); err != nil {
			return nil, err
		}
	}

	r.queue = overrides.queue
	if r.queue == nil {
		r.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	r.collector = overrides.collector
	if r.collector == nil {
		if r.collector, err = newCollector(cfg, logger); err != nil {
			return nil, err
		}
	}

	r.transformer = overrides.transformer
	if r.transformer == nil {
		r.transformer = transform.Validator{}
	}

	windowOpts := []aggregator.Option{aggregator.WithResetHook(r.counterReset)}
	if overrides.clock != nil {
		windowOpts = append(windowOpts, aggregator.WithClock(overrides.clock))
	}
	r.window = aggregator.New(windowOpts...)
	r.windowSink = sink.NewWindowSink(r.window, obs)

	sinks := sink.Fanout{r.windowSink}
	if cfg.Timescale.ConnString != "" {
		if r.db, err = sql.Open("postgres", cfg.Timescale.ConnString); err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewTimescaleSink(r.db, cfg.Timescale.Table))
	}
	r.sink = append(sinks, overrides.sinks...)

	host := overrides.host
	if host == nil {
		host = newPermissionHost(cfg.Permission)
	}
	if r.broker, err = permission.NewBroker(host, obs); err != nil {
		return nil, err
	}
	r.broker.OnGranted(r.startListening)

	if r.plugin, err = bridge.NewPlugin(r.window, r.windowSink, r.collector, r.broker, cfg.Permission.RequestTimeout); err != nil {
		return nil, err
	}

	var prompts bridge.PromptQueue
	if pq, ok := host.(bridge.PromptQueue); ok {
		prompts = pq
	}
	r.mux = http.NewServeMux()
	bridge.NewHandler(r.plugin, prompts, r.broker, logger).Register(r.mux)
	if r.metricsOnBridge() {
		r.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r, nil
}

func newCollector(cfg *Config, log logrus.FieldLogger) (ports.Collector, error) {
	switch cfg.Sensor.Source {
	case config.SourceSimulator, "":
		return simulator.NewCollector(cfg.Sensor.Simulator)
	case config.SourceMQTT:
		return mqtt.NewCollector(cfg.Sensor.MQTT, log)
	case config.SourceOPCUA:
		return opcua.NewCollector(cfg.Sensor.OPCUA, log)
	case config.SourcePush:
		return NewPushCollector("push", &SensorInfo{Name: "Push Step Counter", Vendor: "capsteps", Version: 1}), nil
	default:
		return nil, fmt.Errorf("unknown sensor source %q", cfg.Sensor.Source)
	}
}

func newPermissionHost(cfg config.PermissionConfig) ports.PermissionHost {
	if cfg.Mode == config.PermissionHost {
		return hostperm.NewDeferred(cfg.PromptBacklog)
	}
	return hostperm.AutoGrant{}
}

// Start launches the ingest loop, replays uncommitted readings, serves the
// plugin calls and opens the permission gate. It returns immediately; call
// Run to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("runtime already started")
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.started = true
	r.ingestDone = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.ingestDone)
		pipeline.RunIngestPipeline(r.ctx, r.wal, r.queue, r.transformer, r.sink, r.policy, r.obs)
	}()

	// the ingest loop is already draining, so a blocking replay cannot stall
	if _, err := pipeline.Replay(r.wal, r.queue, r.policy, r.obs); err != nil {
		r.cancel()
		return fmt.Errorf("wal replay: %w", err)
	}

	if err := r.startServers(); err != nil {
		r.cancel()
		return err
	}

	stop := make(chan struct{})
	r.mu.Lock()
	r.gaugeStop = stop
	r.mu.Unlock()
	r.background.Add(1)
	go r.recordResourceGauges(stop, gaugeInterval)

	r.openPermissionGate()
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the servers and the collector, waits for the ingest loop and
// releases the WAL and database.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.mu.Lock()
	cancel := r.cancel
	gaugeStop := r.gaugeStop
	listening := r.listening
	ingestDone := r.ingestDone
	r.gaugeStop = nil
	r.listening = false
	r.mu.Unlock()

	if gaugeStop != nil {
		close(gaugeStop)
	}

	for _, srv := range []*http.Server{r.bridgeSrv, r.metricsSrv} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if listening {
		if err := r.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if cancel != nil {
		cancel()
	}
	if ingestDone != nil {
		select {
		case <-ingestDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for ingest loop: %w", ctx.Err()))
		}
	}
	r.background.Wait()

	if err := r.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeResources() error {
	var errs []error
	r.closeOnce.Do(func() {
		if c, ok := r.wal.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if r.db != nil {
			if err := r.db.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// openPermissionGate starts listening when the permission is already usable,
// otherwise asks for it in the background; the broker's OnGranted hook starts
// the listener once the host grants it.
func (r *Runtime) openPermissionGate() {
	if r.broker.Granted(ActivityRecognition) {
		if err := r.startListening(); err != nil {
			r.logListenError(err)
		}
		return
	}

	r.log.Warn("activity recognition permission not granted")
	if !r.cfg.Permission.RequestOnStart {
		return
	}

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Permission.RequestTimeout)
		defer cancel()

		res, err := r.broker.Request(ctx, ActivityRecognition)
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			r.logListenError(err)
		case !res.Granted:
			r.log.Warn("activity recognition permission denied; step data stays unavailable")
		}
	}()
}

func (r *Runtime) logListenError(err error) {
	if errors.Is(err, ErrSensorUnavailable) {
		r.log.Warn("step sensor is null, cannot register listener")
		return
	}
	r.log.WithError(err).Error("step listener not started")
}

// startListening registers the pipeline with the collector once. It is the
// broker's OnGranted hook, so a late grant restarts sensor listening.
func (r *Runtime) startListening() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listening {
		return nil
	}
	if !r.started {
		return fmt.Errorf("runtime not started")
	}
	if _, ok := r.collector.Sensor(); !ok {
		return ErrSensorUnavailable
	}
	if err := pipeline.RunEdgePipeline(r.ctx, r.collector, r.wal, r.queue, r.policy, r.obs); err != nil {
		return fmt.Errorf("start collector: %w", err)
	}
	r.listening = true

	info, _ := r.collector.Sensor()
	r.obs.LogInfo("step_listener_registered",
		ports.Field{Key: "sensor", Value: info.Name},
		ports.Field{Key: "vendor", Value: info.Vendor})
	return nil
}

func (r *Runtime) counterReset(previous, current float64, at time.Time) {
	r.obs.IncCounter("capsteps_counter_resets_total", 1)
	r.obs.LogWarn("step_counter_reset",
		ports.Field{Key: "previous", Value: previous},
		ports.Field{Key: "current", Value: current},
		ports.Field{Key: "at", Value: at})
}

func (r *Runtime) metricsOnBridge() bool {
	return r.cfg.Metrics.Addr == "" || r.cfg.Metrics.Addr == r.cfg.Bridge.Addr
}

func (r *Runtime) startServers() error {
	ln, err := net.Listen("tcp", r.cfg.Bridge.Addr)
	if err != nil {
		return fmt.Errorf("bridge listen %s: %w", r.cfg.Bridge.Addr, err)
	}
	r.bridgeAddr = ln.Addr()
	r.bridgeSrv = &http.Server{Handler: r.mux, ReadHeaderTimeout: 5 * time.Second}
	go r.serve(r.bridgeSrv, ln, "bridge")

	if r.metricsOnBridge() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", r.cfg.Metrics.Addr, err)
	}
	r.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go r.serve(r.metricsSrv, mln, "metrics")
	return nil
}

func (r *Runtime) serve(srv *http.Server, ln net.Listener, name string) {
	r.log.WithField("addr", ln.Addr().String()).Infof("%s server listening", name)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		r.log.WithError(err).Errorf("%s server exited", name)
	}
}

func (r *Runtime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	defer r.background.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastCompact := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if time.Since(lastCompact) >= walCompactInterval {
				lastCompact = time.Now()
				if err := r.wal.TruncateCommitted(); err != nil {
					r.obs.LogError("wal_compact_failed", err)
				}
			}
			stats := r.wal.Stats()
			r.obs.SetGauge("capsteps_wal_size_bytes", float64(stats.SizeBytes))
			r.obs.SetGauge("capsteps_queue_length", float64(r.queue.Len()))
		}
	}
}

// Steps answers getStepsForPeriod for in-process callers.
func (r *Runtime) Steps(period Period) (StepCountResult, error) {
	return r.plugin.GetStepsForPeriod(bridge.StepPeriodOptions{Period: string(period)})
}

// RawSensorValues answers getRawSensorValues for in-process callers.
func (r *Runtime) RawSensorValues() (SensorValuesResult, error) {
	return r.plugin.GetRawSensorValues()
}

// RequestPermission answers requestActivityRecognitionPermission for
// in-process callers.
func (r *Runtime) RequestPermission(ctx context.Context) (PermissionResult, error) {
	return r.plugin.RequestActivityRecognitionPermission(ctx)
}

// HandlePermissionResult delivers a host's answer to a prompt, for embedders
// that bring their own PermissionHost.
func (r *Runtime) HandlePermissionResult(requestCode int, permissions []string, grants []PermissionState) bool {
	return r.broker.HandleResult(requestCode, permissions, grants)
}

// Handler serves the plugin call envelope (and /metrics when it shares the
// bridge address) for embedding in an existing server.
func (r *Runtime) Handler() http.Handler {
	return r.mux
}

// BridgeAddr is the address the plugin call server listens on once started.
func (r *Runtime) BridgeAddr() string {
	if r.bridgeAddr == nil {
		return ""
	}
	return r.bridgeAddr.String()
}

// Collector returns the active collector, e.g. to type-assert a *PushCollector.
func (r *Runtime) Collector() Collector {
	return r.collector
}

func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	listening := r.listening
	r.mu.Unlock()
	return Stats{
		WAL:                r.wal.Stats(),
		QueueLen:           r.queue.Len(),
		WindowSamples:      r.window.Len(),
		Listening:          listening,
		PendingPermissions: r.broker.Pending(),
	}
}
