package iovsim

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RunnerOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the simulation side of the run.
type StreamInOption func(*Flow)

// StreamOutOption configures where the run's output goes.
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

// Config returns the underlying configuration so callers can tweak it before building a runner.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RunnerOption values to the builder.
func (f *Flow) Options(opts ...RunnerOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records simulation-side overrides (launcher, observability).
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

// StreamOUT records output-side overrides and builds a Runner ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runner, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRunner(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + Runner.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) (*Result, error) {
	r, err := f.StreamOUT(opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// WithFlowOptions appends RunnerOption values during Conf.
func WithFlowOptions(opts ...RunnerOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// InMemory switches the flow to the built-in simulation, useful for dry runs
// without SUMO installed.
func InMemory() FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.cfg.Simulation.Backend = BackendMemory
		}
	}
}

// StreamInLauncher drives a caller-provided simulation.
func StreamInLauncher(l Launcher) StreamInOption {
	return func(f *Flow) {
		if f != nil && l != nil {
			f.appendOptions(WithLauncher(l))
		}
	}
}

// StreamInObservability overrides the default zap + Prometheus stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutSink mirrors the run into s next to the run directory.
func StreamOutSink(s RecordSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithMirrorSink(s))
		}
	}
}

// StreamOutCallback mirrors the run into plain callbacks.
func StreamOutCallback(name string, h SinkHandlers) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithMirrorSink(NewCallbackSink(name, h)))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

func (f *Flow) appendOptions(opts ...RunnerOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
