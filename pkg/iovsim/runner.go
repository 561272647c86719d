package iovsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/dataset"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/journal"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/memsim"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/observability"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/queue"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/sink"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/traci"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/app/dataprep"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/app/pipeline"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// RunnerOption customizes the dependencies used by Runner.
type RunnerOption func(*runnerOverrides)

type runnerOverrides struct {
	launcher ports.Launcher
	obs      ports.Observability
	logger   *zap.Logger
	registry *prometheus.Registry
	mirrors  []ports.RecordSink
	clock    func() time.Time
	runID    string
}

// WithLauncher replaces the backend chosen by simulation.backend.
func WithLauncher(l Launcher) RunnerOption {
	return func(o *runnerOverrides) {
		o.launcher = l
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) RunnerOption {
	return func(o *runnerOverrides) {
		o.obs = obs
	}
}

// WithLogger sets the zap logger used by the default observability backend.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(o *runnerOverrides) {
		o.logger = l
	}
}

// WithRegistry registers the default collectors on reg and serves reg on
// the metrics endpoint.
func WithRegistry(reg *prometheus.Registry) RunnerOption {
	return func(o *runnerOverrides) {
		o.registry = reg
	}
}

// WithMirrorSink adds a best-effort sink next to the run directory.
func WithMirrorSink(s RecordSink) RunnerOption {
	return func(o *runnerOverrides) {
		if s != nil {
			o.mirrors = append(o.mirrors, s)
		}
	}
}

// WithClock overrides the wall clock used for run directory names and
// summary timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(o *runnerOverrides) {
		o.clock = now
	}
}

// WithRunID fixes the run id instead of generating a UUID.
func WithRunID(id string) RunnerOption {
	return func(o *runnerOverrides) {
		o.runID = id
	}
}

// Result is what a finished run left behind.
type Result struct {
	RunDir  string
	Summary RunSummary
}

// Runner wires dataset → schedule → simulation → sinks for one run and owns
// the optional metrics endpoint while it executes.
type Runner struct {
	cfg      *Config
	launcher ports.Launcher
	obs      ports.Observability
	gatherer prometheus.Gatherer
	mirrors  []ports.RecordSink
	clock    func() time.Time
	runID    string

	metricsSrv *http.Server
}

// NewRunner resolves cfg and bootstraps the default adapters: the SUMO (or
// in-memory) launcher, zap logging and Prometheus metrics. RunnerOption values
// override any of them.
func NewRunner(cfg *Config, opts ...RunnerOption) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	var overrides runnerOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if overrides.registry != nil {
		gatherer = overrides.registry
	}

	obs := overrides.obs
	if obs == nil {
		logger := overrides.logger
		if logger == nil {
			var err error
			logger, err = observability.NewLogger(cfg.Log)
			if err != nil {
				return nil, err
			}
		}
		reg := overrides.registry
		if reg == nil {
			reg = prometheus.NewRegistry()
			gatherer = reg
		}
		obs = observability.NewPromObs(reg, logger)
	}

	launcher := overrides.launcher
	if launcher == nil {
		var err error
		launcher, err = defaultLauncher(cfg)
		if err != nil {
			return nil, err
		}
	}

	clock := overrides.clock
	if clock == nil {
		clock = time.Now
	}

	return &Runner{
		cfg:      cfg,
		launcher: launcher,
		obs:      obs,
		gatherer: gatherer,
		mirrors:  overrides.mirrors,
		clock:    clock,
		runID:    overrides.runID,
	}, nil
}

func defaultLauncher(cfg *Config) (ports.Launcher, error) {
	switch cfg.Simulation.Backend {
	case BackendMemory:
		return &memsim.Launcher{Options: memsim.Options{
			StepLength: cfg.Policy.StepLength,
			Seed:       cfg.Policy.Seed,
		}}, nil
	default:
		return traci.NewLauncher(cfg.Simulation.SUMO)
	}
}

// Run executes one full simulation pass. Nothing is written to disk when the
// dataset or the simulation fails to come up. Once the run directory exists
// a Result is always returned, with the error of a failed run next to it,
// and the run is finalized even if the loop panics.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	if r == nil {
		return nil, fmt.Errorf("runner is nil")
	}
	pol := r.cfg.Policy

	data, err := dataset.Load(r.cfg.Dataset.Path)
	if err != nil {
		r.obs.LogCritical("dataset_load_failed", err, ports.Field{Key: "path", Value: r.cfg.Dataset.Path})
		return nil, err
	}
	if n := len(data.Skipped); n > 0 {
		r.obs.LogWarn("dataset_rows_skipped", data.Skipped[0],
			ports.Field{Key: "skipped", Value: n},
			ports.Field{Key: "rows", Value: data.Rows})
	}

	prep, err := dataprep.Prepare(data.Records, pol.Duration, pol.SampleRate, pol.Seed)
	if err != nil {
		r.obs.LogCritical("schedule_failed", err)
		return nil, err
	}
	r.obs.LogInfo("schedule_prepared",
		ports.Field{Key: "source_records", Value: prep.SourceRecords},
		ports.Field{Key: "scheduled", Value: len(prep.Records)},
		ports.Field{Key: "scale_factor", Value: prep.Scale.Factor})

	sim, err := r.launcher.Start(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrAdapterStartup) {
			err = fmt.Errorf("%w: %w", domain.ErrAdapterStartup, err)
		}
		r.obs.LogCritical("adapter_startup_failed", err, ports.Field{Key: "backend", Value: r.cfg.Simulation.Backend})
		return nil, err
	}

	runDir, files, jr, err := r.openRunDir()
	if err != nil {
		_ = sim.Close()
		r.obs.LogCritical("run_dir_failed", err, ports.Field{Key: "output", Value: r.cfg.Output.Dir})
		return nil, err
	}

	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	manifest := domain.RunSummary{
		RunID:         runID,
		Status:        domain.RunRunning,
		Duration:      pol.Duration,
		DatasetSize:   len(prep.Records),
		SourceRecords: prep.SourceRecords,
		ScaleFactor:   prep.Scale.Factor,
	}
	if err := files.WriteSummary(manifest); err != nil {
		r.obs.LogWarn("manifest_write_failed", err, ports.Field{Key: "run_dir", Value: runDir})
	}

	mirrors, closeMirrors := r.openMirrors(ctx, runID)
	defer closeMirrors()

	run := pipeline.NewRun(runDir, prep, pol, pipeline.Deps{
		Sim:     sim,
		Sink:    sink.NewFanout(files, r.obs, mirrors...),
		Journal: jr,
		Obs:     r.obs,
		RunID:   runID,
		Clock:   r.clock,
	})

	defer func() {
		_, finErr := run.Finalize()
		res = &Result{RunDir: runDir, Summary: run.Summary()}
		err = errors.Join(err, finErr)
	}()

	r.startMetrics()
	defer r.stopMetrics()

	return nil, run.Execute(ctx)
}

// openJournal is swapped in tests.
var openJournal = journal.Open

func (r *Runner) openRunDir() (string, *sink.FileSink, *journal.FileJournal, error) {
	runDir, err := sink.NewRunDir(r.cfg.Output.Dir, r.clock())
	if err != nil {
		return "", nil, nil, err
	}
	files, err := sink.NewFileSink(runDir)
	if err != nil {
		_ = os.RemoveAll(runDir)
		return "", nil, nil, err
	}
	jr, err := openJournal(filepath.Join(runDir, sink.JournalDir))
	if err != nil {
		_ = os.RemoveAll(runDir)
		return "", nil, nil, err
	}
	return runDir, files, jr, nil
}

// openMirrors connects the configured database mirrors. A mirror that cannot
// be reached is logged and left out; the run goes ahead without it.
func (r *Runner) openMirrors(ctx context.Context, runID string) ([]ports.RecordSink, func()) {
	mirrors := append([]ports.RecordSink(nil), r.mirrors...)
	var closers []func()

	if ts := r.cfg.Timescale; ts.ConnString != "" {
		db, err := sink.OpenTimescale(ctx, ts.Driver, ts.ConnString)
		if err != nil {
			r.obs.LogWarn("timescale_mirror_disabled", err, ports.Field{Key: "driver", Value: ts.Driver})
		} else {
			m := r.async(sink.NewTimescaleSink(db, ts.Table, runID))
			mirrors = append(mirrors, m)
			closers = append(closers, m.Close, func() { _ = db.Close() })
		}
	}

	if in := r.cfg.Influx; in.URL != "" {
		client := sink.NewInfluxClient(in.URL, in.Token)
		m := r.async(sink.NewInfluxSink(client.WriteAPIBlocking(in.Org, in.Bucket), runID, r.clock()))
		mirrors = append(mirrors, m)
		closers = append(closers, m.Close, client.Close)
	}

	return mirrors, func() {
		for _, c := range closers {
			c()
		}
	}
}

func (r *Runner) async(s ports.RecordSink) *sink.AsyncMirror {
	return sink.NewAsyncMirror(s, queue.NewMemQueue(r.cfg.Output.MirrorQueue), r.obs)
}

func (r *Runner) startMetrics() {
	if r.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := r.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err, ports.Field{Key: "addr", Value: srv.Addr})
		}
	}()
}

func (r *Runner) stopMetrics() {
	if r.metricsSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		r.obs.LogError("metrics_shutdown_failed", err)
	}
	r.metricsSrv = nil
}
