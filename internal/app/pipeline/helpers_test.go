package pipeline

import (
	"errors"
	"time"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/app/dataprep"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

var fixedClock = func() time.Time { return time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC) }

func testPolicy(duration float64) ports.Policy {
	return ports.Policy{
		Duration:         duration,
		SampleRate:       1,
		Seed:             42,
		StepLength:       0.1,
		SamplingInterval: 10,
		NormalType:       "car",
		MaliciousType:    "malicious_vehicle",
		FallbackRoute:    "route0",
		Depart:           "now",
		DepartSpeed:      "random",
	}
}

func rec(index int, simTime float64, malicious bool) domain.NormalizedRecord {
	attack := "normal"
	if malicious {
		attack = "fuzzing"
	}
	return domain.NormalizedRecord{
		DatasetRecord: domain.DatasetRecord{
			Timestamp:   1700000000 + simTime,
			CANID:       "0x1A0",
			Payload:     "0011223344556677",
			AttackType:  attack,
			IsMalicious: malicious,
		},
		SimTime: simTime,
		Index:   index,
	}
}

func prepared(records ...domain.NormalizedRecord) *dataprep.Prepared {
	return &dataprep.Prepared{Records: records, Scale: dataprep.Scale{Factor: 1}, SourceRecords: len(records)}
}

type mockObs struct {
	counters map[string]float64
	gauges   map[string]float64
	infos    []string
	warnings []string
	errors   []error
	critical []error
	skipped  []domain.NormalizedRecord
}

func newMockObs() *mockObs {
	return &mockObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field)              { m.infos = append(m.infos, msg) }
func (m *mockObs) LogWarn(msg string, _ error, _ ...ports.Field)     { m.warnings = append(m.warnings, msg) }
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field)    { m.errors = append(m.errors, err) }
func (m *mockObs) LogCritical(_ string, err error, _ ...ports.Field) { m.critical = append(m.critical, err) }
func (m *mockObs) IncCounter(name string, v float64)                 { m.counters[name] += v }
func (m *mockObs) ObserveLatency(string, float64)                    {}
func (m *mockObs) SetGauge(name string, v float64)                   { m.gauges[name] = v }
func (m *mockObs) RecordSkippedInjection(r domain.NormalizedRecord, _ error) {
	m.skipped = append(m.skipped, r)
	m.IncCounter(ports.MetricInjectionsSkipped, 1)
}

func (m *mockObs) count(list []string, msg string) int {
	n := 0
	for _, s := range list {
		if s == msg {
			n++
		}
	}
	return n
}

type memorySink struct {
	snapshotTimes []float64
	snapshots     map[float64][]domain.TrafficSnapshot
	anomalyWrites int
	anomalies     []domain.AnomalyRecord
	summaries     []domain.RunSummary
	failSnapshots bool
}

func newMemorySink() *memorySink {
	return &memorySink{snapshots: map[float64][]domain.TrafficSnapshot{}}
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) WriteSnapshot(t float64, rows []domain.TrafficSnapshot) error {
	if m.failSnapshots {
		return errors.New("disk full")
	}
	m.snapshotTimes = append(m.snapshotTimes, t)
	m.snapshots[t] = rows
	return nil
}

func (m *memorySink) WriteAnomalies(rows []domain.AnomalyRecord) error {
	m.anomalyWrites++
	m.anomalies = rows
	return nil
}

func (m *memorySink) WriteSummary(s domain.RunSummary) error {
	m.summaries = append(m.summaries, s)
	return nil
}

// memJournal keeps entries in memory.
type memJournal struct {
	entries    []domain.InjectionEvent
	syncs      int
	closed     int
	failAppend bool
}

func (j *memJournal) Append(ev domain.InjectionEvent) (ports.JournalEntryID, error) {
	if j.failAppend {
		return 0, errors.New("journal full")
	}
	j.entries = append(j.entries, ev)
	return ports.JournalEntryID(len(j.entries)), nil
}

func (j *memJournal) Iterate(from ports.JournalEntryID, fn func(ports.JournalEntryID, domain.InjectionEvent) error) error {
	for i, ev := range j.entries {
		id := ports.JournalEntryID(i + 1)
		if id < from {
			continue
		}
		if err := fn(id, ev); err != nil {
			return err
		}
	}
	return nil
}

func (j *memJournal) Sync() error { j.syncs++; return nil }

func (j *memJournal) Stats() ports.JournalStats {
	return ports.JournalStats{LatestAppended: ports.JournalEntryID(len(j.entries)), SizeBytes: int64(64 * len(j.entries))}
}

func (j *memJournal) Close() error { j.closed++; return nil }
