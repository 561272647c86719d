// Package pipeline drives one injection run: it steps the simulation, injects
// due records, samples live state and writes the run's outputs.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/app/dataprep"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Deps are the collaborators of a Run. Journal is optional.
type Deps struct {
	Sim     ports.Simulation
	Sink    ports.RecordSink
	Journal ports.InjectionJournal
	Obs     ports.Observability
	RunID   string
	Clock   func() time.Time
}

// Run is a single pass over a prepared schedule. It is driven by one
// goroutine; Finalize may be deferred by the caller.
type Run struct {
	id   string
	dir  string
	prep *dataprep.Prepared
	pol  ports.Policy
	deps Deps

	ledger   *Ledger
	injector *Injector
	sampler  *StateSampler

	state        State
	err          error
	simTime      float64
	nextProgress float64

	finalizeOnce sync.Once
	summary      domain.RunSummary
	finalErr     error
}

// NewRun wires a run writing into dir. A missing RunID gets a random UUID.
func NewRun(dir string, prep *dataprep.Prepared, pol ports.Policy, deps Deps) *Run {
	if deps.RunID == "" {
		deps.RunID = uuid.NewString()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	ledger := NewLedger(deps.Journal, deps.Obs)
	return &Run{
		id:           deps.RunID,
		dir:          dir,
		prep:         prep,
		pol:          pol,
		deps:         deps,
		ledger:       ledger,
		injector:     NewInjector(deps.Sim, prep.Records, pol, ledger, deps.Obs),
		sampler:      NewStateSampler(deps.Sim, deps.Sink, pol, deps.Obs),
		nextProgress: pol.ProgressInterval,
	}
}

func (r *Run) ID() string       { return r.id }
func (r *Run) Dir() string      { return r.dir }
func (r *Run) State() State     { return r.state }
func (r *Run) Err() error       { return r.err }
func (r *Run) Ledger() *Ledger  { return r.ledger }
func (r *Run) SimTime() float64 { return r.simTime }

// Execute steps the simulation until its clock reaches the policy duration,
// a fatal adapter error occurs or ctx is done. The returned error is also
// kept for the summary.
func (r *Run) Execute(ctx context.Context) error {
	if r.state != StateIdle {
		return errors.New("pipeline: run already executed")
	}
	r.state = StateRunning
	obs := r.deps.Obs
	obs.LogInfo("run_started",
		ports.Field{Key: "run_id", Value: r.id},
		ports.Field{Key: "run_dir", Value: r.dir},
		ports.Field{Key: "records", Value: len(r.prep.Records)},
		ports.Field{Key: "duration", Value: r.pol.Duration})

	if err := r.injector.Prepare(); err != nil {
		return r.fail(err)
	}

	var limiter *rate.Limiter
	if r.pol.StepDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.pol.StepDelay), 1)
	}

	for tick := 0; ; tick++ {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}

		now, err := r.deps.Sim.CurrentTime()
		if err != nil {
			return r.fail(domain.Fatal("current time", err))
		}
		r.simTime = now
		obs.SetGauge(ports.GaugeSimTime, now)

		if err := r.injector.InjectDue(tick, now); err != nil {
			return r.fail(err)
		}

		sampled, err := r.sampler.MaybeSample(now)
		if err != nil {
			return r.fail(err)
		}
		if sampled && r.deps.Journal != nil {
			if err := r.deps.Journal.Sync(); err != nil {
				obs.LogError("journal_sync_failed", err)
			}
		}
		r.progress(now)

		if now >= r.pol.Duration {
			r.state = StateComplete
			obs.LogInfo("run_complete",
				ports.Field{Key: "sim_time", Value: now},
				ports.Field{Key: "injected", Value: r.ledger.Total()},
				ports.Field{Key: "malicious", Value: r.ledger.Malicious()},
				ports.Field{Key: "skipped", Value: r.ledger.Skipped()})
			return nil
		}

		start := time.Now()
		if err := r.deps.Sim.AdvanceStep(); err != nil {
			return r.fail(domain.Fatal("advance step", err))
		}
		obs.ObserveLatency(ports.LatencyStep, time.Since(start).Seconds())

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return r.fail(err)
			}
		}
	}
}

func (r *Run) progress(now float64) {
	if r.pol.ProgressInterval <= 0 || now < r.nextProgress {
		return
	}
	for r.nextProgress <= now {
		r.nextProgress += r.pol.ProgressInterval
	}
	pct := 100 * now / r.pol.Duration
	r.deps.Obs.LogInfo("progress",
		ports.Field{Key: "sim_time", Value: now},
		ports.Field{Key: "duration", Value: r.pol.Duration},
		ports.Field{Key: "percent", Value: pct},
		ports.Field{Key: "injected", Value: r.ledger.Total()},
		ports.Field{Key: "malicious", Value: r.ledger.Malicious()})
}

func (r *Run) fail(err error) error {
	r.state = StateFailed
	r.err = err
	r.deps.Obs.LogCritical("run_failed", err,
		ports.Field{Key: "sim_time", Value: r.simTime},
		ports.Field{Key: "injected", Value: r.ledger.Total()})
	return err
}

// Finalize flushes the journal, writes the anomaly file and the summary and
// releases the simulation. It runs once; later calls return the first result.
func (r *Run) Finalize() (string, error) {
	r.finalizeOnce.Do(func() {
		if r.state == StateRunning || r.state == StateIdle {
			r.state = StateFailed
			if r.err == nil {
				r.err = errors.New("pipeline: run finalized before completion")
			}
		}

		var errs []error
		if j := r.deps.Journal; j != nil {
			if err := j.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.deps.Sink.WriteAnomalies(r.ledger.Anomalies()); err != nil {
			errs = append(errs, err)
		}

		r.summary = r.buildSummary()
		if err := r.deps.Sink.WriteSummary(r.summary); err != nil {
			errs = append(errs, err)
		}
		if err := r.deps.Sim.Close(); err != nil {
			errs = append(errs, err)
		}

		r.finalErr = errors.Join(errs...)
		if r.finalErr != nil {
			r.deps.Obs.LogError("finalize_failed", r.finalErr, ports.Field{Key: "run_dir", Value: r.dir})
		}
		r.deps.Obs.LogInfo("run_finalized",
			ports.Field{Key: "run_dir", Value: r.dir},
			ports.Field{Key: "status", Value: string(r.summary.Status)})
	})
	return r.dir, r.finalErr
}

// Summary is valid after Finalize.
func (r *Run) Summary() domain.RunSummary { return r.summary }

func (r *Run) buildSummary() domain.RunSummary {
	s := domain.RunSummary{
		RunID:                   r.id,
		Status:                  domain.RunComplete,
		TotalActorsInjected:     r.ledger.Total(),
		MaliciousActorsInjected: r.ledger.Malicious(),
		SkippedInjections:       r.ledger.Skipped(),
		SnapshotsWritten:        r.sampler.Written(),
		Duration:                r.pol.Duration,
		FinalSimTime:            r.simTime,
		DatasetSize:             len(r.prep.Records),
		SourceRecords:           r.prep.SourceRecords,
		ScaleFactor:             r.prep.Scale.Factor,
		CompletedAt:             r.deps.Clock().UTC(),
	}
	if r.state != StateComplete {
		s.Status = domain.RunFailed
		if r.err != nil {
			s.Error = r.err.Error()
		}
	}
	return s
}
