package iovsim

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	base "github.com/hrvrbhanu01/connected-vehicle-security/pkg/iovsim"
)

// Re-exported errors for convenience.
var (
	ErrEmptyDataset      = base.ErrEmptyDataset
	ErrAdapterStartup    = base.ErrAdapterStartup
	ErrAdapterFatal      = base.ErrAdapterFatal
	ErrActorCreation     = base.ErrActorCreation
	ErrActorQuery        = base.ErrActorQuery
	ErrActorNotFound     = base.ErrActorNotFound
	ErrRunFinalized      = base.ErrRunFinalized
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/hrvrbhanu01/connected-vehicle-security directly.
type (
	Config           = base.Config
	Policy           = base.Policy
	SUMOConfig       = base.SUMOConfig
	DatasetConfig    = base.DatasetConfig
	SimulationConfig = base.SimulationConfig
	OutputConfig     = base.OutputConfig
	MetricsConfig    = base.MetricsConfig
	LogConfig        = base.LogConfig
	TimescaleConfig  = base.TimescaleConfig
	InfluxConfig     = base.InfluxConfig
	Flow             = base.Flow
	FlowOption       = base.FlowOption
	StreamInOption   = base.StreamInOption
	StreamOutOption  = base.StreamOutOption
	Runner           = base.Runner
	RunnerOption     = base.RunnerOption
	Result           = base.Result
	RunSummary       = base.RunSummary
	RunStatus        = base.RunStatus
	TrafficSnapshot  = base.TrafficSnapshot
	AnomalyRecord    = base.AnomalyRecord
	SnapshotBatch    = base.SnapshotBatch
	SinkHandlers     = base.SinkHandlers
	Simulation       = base.Simulation
	Launcher         = base.Launcher
	RecordSink       = base.RecordSink
	Observability    = base.Observability
	Field            = base.Field
	CommandError     = base.CommandError
)

const (
	BackendSUMO   = base.BackendSUMO
	BackendMemory = base.BackendMemory
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ReadConfig(path string) (*Config, error) {
	return base.ReadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RunnerOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func InMemory() FlowOption {
	return base.InMemory()
}

func StreamInLauncher(l Launcher) StreamInOption {
	return base.StreamInLauncher(l)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s RecordSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutCallback(name string, h SinkHandlers) StreamOutOption {
	return base.StreamOutCallback(name, h)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

// Runner and options.
func NewRunner(cfg *Config, opts ...RunnerOption) (*Runner, error) {
	return base.NewRunner(cfg, opts...)
}

func WithLauncher(l Launcher) RunnerOption {
	return base.WithLauncher(l)
}

func WithObservability(obs Observability) RunnerOption {
	return base.WithObservability(obs)
}

func WithLogger(l *zap.Logger) RunnerOption {
	return base.WithLogger(l)
}

func WithRegistry(reg *prometheus.Registry) RunnerOption {
	return base.WithRegistry(reg)
}

func WithMirrorSink(s RecordSink) RunnerOption {
	return base.WithMirrorSink(s)
}

func WithClock(now func() time.Time) RunnerOption {
	return base.WithClock(now)
}

func WithRunID(id string) RunnerOption {
	return base.WithRunID(id)
}

// Run builds a Runner from cfg and executes it.
func Run(ctx context.Context, cfg *Config, opts ...RunnerOption) (*Result, error) {
	r, err := base.NewRunner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Recover rebuilds the outputs of a run killed before it finalized.
func Recover(runDir string, now time.Time) (RunSummary, error) {
	return base.Recover(runDir, now)
}

// Sink adapters.
func NewCallbackSink(name string, h SinkHandlers) RecordSink {
	return base.NewCallbackSink(name, h)
}

func NewChannelSink(name string, buffer int) (RecordSink, <-chan SnapshotBatch, func()) {
	return base.NewChannelSink(name, buffer)
}

func IsFatal(err error) bool { return base.IsFatal(err) }
