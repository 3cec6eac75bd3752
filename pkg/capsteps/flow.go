package capsteps

import (
	"context"
	"fmt"
)

// Flow is a convenience builder: Conf → StreamIN → StreamOUT gives a Runtime
// without touching the underlying wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the sensor side: collector, WAL, queue, permission host.
type StreamInOption func(*Flow)

// StreamOutOption configures what happens to readings after the queue.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values for advanced scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records sensor-side overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records sink-side overrides and builds a Runtime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInCollector injects a custom collector.
func StreamInCollector(col Collector) StreamInOption {
	return use(col, col != nil, WithCollector)
}

// StreamInPush feeds the pipeline from p instead of the configured source.
func StreamInPush(p *PushCollector) StreamInOption {
	return use(Collector(p), p != nil, WithCollector)
}

func StreamInQueue(q SampleQueue) StreamInOption {
	return use(q, q != nil, WithSampleQueue)
}

func StreamInWAL(w WAL) StreamInOption {
	return use(w, w != nil, WithWAL)
}

// StreamInPermissionHost answers permission prompts with h.
func StreamInPermissionHost(h PermissionHost) StreamInOption {
	return use(h, h != nil, WithPermissionHost)
}

func StreamInObservability(obs Observability) StreamInOption {
	return use(obs, obs != nil, WithObservability)
}

// StreamOutSink adds a sink next to the step window.
func StreamOutSink(s Sink) StreamOutOption {
	return use(s, s != nil, WithSink)
}

// StreamOutTransformer overrides the default validator before readings hit the sinks.
func StreamOutTransformer(tr Transformer) StreamOutOption {
	return use(tr, tr != nil, WithTransformer)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return use(obs, obs != nil, WithObservability)
}

// StreamOutCallback installs a sink built from a simple callback function.
func StreamOutCallback(name string, fn SampleBatchSink) StreamOutOption {
	return use(NewCallbackSink(name, fn), true, WithSink)
}

// use appends with(v) to the flow when ok.
func use[T any](v T, ok bool, with func(T) RuntimeOption) func(*Flow) {
	return func(f *Flow) {
		if f != nil && ok {
			f.appendOptions(with(v))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
