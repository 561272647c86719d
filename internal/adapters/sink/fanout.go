package sink

import (
	"fmt"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// Fanout writes to a primary sink and then to best-effort mirrors. Only the
// primary's errors are returned; mirror errors and panics are logged and
// counted.
type Fanout struct {
	primary ports.RecordSink
	mirrors []ports.RecordSink
	obs     ports.Observability
}

func NewFanout(primary ports.RecordSink, obs ports.Observability, mirrors ...ports.RecordSink) *Fanout {
	return &Fanout{primary: primary, mirrors: mirrors, obs: obs}
}

func (f *Fanout) Name() string { return f.primary.Name() }

func (f *Fanout) WriteSnapshot(simTime float64, rows []domain.TrafficSnapshot) error {
	err := f.primary.WriteSnapshot(simTime, rows)
	for _, m := range f.mirrors {
		f.guard(m, "snapshot", func() error { return m.WriteSnapshot(simTime, rows) })
	}
	return err
}

func (f *Fanout) WriteAnomalies(rows []domain.AnomalyRecord) error {
	err := f.primary.WriteAnomalies(rows)
	for _, m := range f.mirrors {
		f.guard(m, "anomalies", func() error { return m.WriteAnomalies(rows) })
	}
	return err
}

func (f *Fanout) WriteSummary(s domain.RunSummary) error {
	err := f.primary.WriteSummary(s)
	for _, m := range f.mirrors {
		f.guard(m, "summary", func() error { return m.WriteSummary(s) })
	}
	return err
}

func (f *Fanout) guard(m ports.RecordSink, what string, write func() error) {
	defer func() {
		if p := recover(); p != nil {
			f.mirrorErr(m, what, fmt.Errorf("mirror panicked: %v", p))
		}
	}()
	f.mirrorErr(m, what, write())
}

func (f *Fanout) mirrorErr(m ports.RecordSink, what string, err error) {
	if err == nil || f.obs == nil {
		return
	}
	f.obs.IncCounter(ports.MetricSinkErrors, 1)
	f.obs.LogError("mirror_write_failed", err,
		ports.Field{Key: "sink", Value: m.Name()},
		ports.Field{Key: "write", Value: what})
}

var _ ports.RecordSink = (*Fanout)(nil)
