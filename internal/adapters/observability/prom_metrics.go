package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the driver's collectors on reg and logs through logger.
// A nil reg uses prometheus.DefaultRegisterer; a nil logger discards logs.
func NewPromObs(reg prometheus.Registerer, logger *zap.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	injected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricActorsInjected,
		Help: "Actors created in the simulation from dataset records.",
	})
	malicious := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricMaliciousInjected,
		Help: "Malicious actors created (one anomaly row each).",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricInjectionsSkipped,
		Help: "Records whose actor creation was rejected by the simulation.",
	})
	querySkips := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricActorQueriesFailed,
		Help: "Actors left out of a snapshot because their state could not be read.",
	})
	snapshots := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricSnapshotsWritten,
		Help: "Traffic snapshot batches written.",
	})
	sinkErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricSinkErrors,
		Help: "Failed writes to output or mirror sinks.",
	})
	simTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.GaugeSimTime,
		Help: "Current simulation clock.",
	})
	live := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.GaugeLiveActors,
		Help: "Actors alive at the last snapshot.",
	})
	journal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.GaugeJournalSize,
		Help: "Size of the injection journal on disk.",
	})
	step := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.LatencyStep,
		Help:    "Wall time spent in one simulation step round trip.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	snapshot := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.LatencySnapshot,
		Help:    "Wall time to poll all live actors and write one snapshot.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(injected, malicious, skipped, querySkips, snapshots, sinkErrs,
		simTime, live, journal, step, snapshot)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricActorsInjected:     injected,
			ports.MetricMaliciousInjected:  malicious,
			ports.MetricInjectionsSkipped:  skipped,
			ports.MetricActorQueriesFailed: querySkips,
			ports.MetricSnapshotsWritten:   snapshots,
			ports.MetricSinkErrors:         sinkErrs,
		},
		gauges: map[string]prometheus.Gauge{
			ports.GaugeSimTime:     simTime,
			ports.GaugeLiveActors:  live,
			ports.GaugeJournalSize: journal,
		},
		histos: map[string]prometheus.Observer{
			ports.LatencyStep:     step,
			ports.LatencySnapshot: snapshot,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogWarn(msg string, err error, fields ...ports.Field) {
	p.log.Warn(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
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

func (p *PromObs) RecordSkippedInjection(rec domain.NormalizedRecord, err error) {
	p.IncCounter(ports.MetricInjectionsSkipped, 1)
	p.log.Warn("injection_skipped",
		zap.Int("record", rec.Index),
		zap.Float64("sim_time", rec.SimTime),
		zap.String("can_id", rec.CANID),
		zap.Bool("malicious", rec.IsMalicious),
		zap.Error(err))
}

func zapFields(fields []ports.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
