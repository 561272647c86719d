package pipeline

import (
	"fmt"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// Ledger holds the run's counters and anomaly rows. The anomaly list and the
// malicious counter only ever move together.
type Ledger struct {
	journal ports.InjectionJournal
	obs     ports.Observability

	total     int
	malicious int
	skipped   int
	lastAt    float64
	anomalies []domain.AnomalyRecord
}

// NewLedger returns an empty ledger. journal may be nil.
func NewLedger(journal ports.InjectionJournal, obs ports.Observability) *Ledger {
	return &Ledger{journal: journal, obs: obs}
}

// Record accounts one created actor and writes it through to the journal.
// Journal failures are logged; the in-memory ledger stays authoritative.
func (l *Ledger) Record(ev domain.InjectionEvent) {
	l.apply(ev)
	if l.obs != nil {
		l.obs.IncCounter(ports.MetricActorsInjected, 1)
		if ev.Actor.IsMalicious {
			l.obs.IncCounter(ports.MetricMaliciousInjected, 1)
		}
	}
	if l.journal == nil {
		return
	}
	if _, err := l.journal.Append(ev); err != nil {
		if l.obs != nil {
			l.obs.IncCounter(ports.MetricSinkErrors, 1)
			l.obs.LogError("journal_append_failed", err, ports.Field{Key: "actor_id", Value: ev.Actor.ActorID})
		}
		return
	}
	if l.obs != nil {
		l.obs.SetGauge(ports.GaugeJournalSize, float64(l.journal.Stats().SizeBytes))
	}
}

func (l *Ledger) apply(ev domain.InjectionEvent) {
	l.total++
	l.lastAt = max(l.lastAt, ev.Actor.InjectedAt)
	if ev.Actor.IsMalicious {
		l.malicious++
		l.anomalies = append(l.anomalies, domain.AnomalyFromInjection(ev.Actor, ev.Record))
	}
}

// Skip accounts a record whose actor the simulation refused.
func (l *Ledger) Skip(rec domain.NormalizedRecord, err error) {
	l.skipped++
	if l.obs != nil {
		l.obs.RecordSkippedInjection(rec, err)
	}
}

func (l *Ledger) Total() int     { return l.total }
func (l *Ledger) Malicious() int { return l.malicious }
func (l *Ledger) Skipped() int   { return l.skipped }

// LastInjectedAt is the simulation time of the latest recorded injection.
func (l *Ledger) LastInjectedAt() float64 { return l.lastAt }

// Anomalies returns a copy of the anomaly rows in injection order.
func (l *Ledger) Anomalies() []domain.AnomalyRecord {
	out := make([]domain.AnomalyRecord, len(l.anomalies))
	copy(out, l.anomalies)
	return out
}

// Replay rebuilds a ledger from a journal left behind by an unfinished run.
func Replay(j ports.InjectionJournal) (*Ledger, error) {
	l := &Ledger{}
	err := j.Iterate(0, func(id ports.JournalEntryID, ev domain.InjectionEvent) error {
		l.apply(ev)
		return nil
	})
	if err != nil {
		return l, fmt.Errorf("replay journal: %w", err)
	}
	return l, nil
}
