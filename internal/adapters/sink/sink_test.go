package sink

import (
	"errors"
	"sync"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

type obsStub struct {
	mu       sync.Mutex
	counters map[string]float64
	errors   []string
}

func newObsStub() *obsStub { return &obsStub{counters: map[string]float64{}} }

func (o *obsStub) LogInfo(string, ...ports.Field)                        {}
func (o *obsStub) LogWarn(string, error, ...ports.Field)                 {}
func (o *obsStub) LogCritical(string, error, ...ports.Field)             {}
func (o *obsStub) ObserveLatency(string, float64)                        {}
func (o *obsStub) SetGauge(string, float64)                              {}
func (o *obsStub) RecordSkippedInjection(domain.NormalizedRecord, error) {}

func (o *obsStub) LogError(msg string, _ error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, msg)
}

func (o *obsStub) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}

// memorySink records writes and can be told to fail.
type memorySink struct {
	name      string
	fail      bool
	snapshots map[float64][]domain.TrafficSnapshot
	anomalies []domain.AnomalyRecord
	summaries []domain.RunSummary
}

func newMemorySink(name string) *memorySink {
	return &memorySink{name: name, snapshots: map[float64][]domain.TrafficSnapshot{}}
}

var errSinkDown = errors.New("sink down")

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) WriteSnapshot(t float64, rows []domain.TrafficSnapshot) error {
	if m.fail {
		return errSinkDown
	}
	m.snapshots[t] = rows
	return nil
}

func (m *memorySink) WriteAnomalies(rows []domain.AnomalyRecord) error {
	if m.fail {
		return errSinkDown
	}
	m.anomalies = append(m.anomalies, rows...)
	return nil
}

func (m *memorySink) WriteSummary(s domain.RunSummary) error {
	if m.fail {
		return errSinkDown
	}
	m.summaries = append(m.summaries, s)
	return nil
}

var (
	sampleSnapshot = []domain.TrafficSnapshot{
		{SimTime: 10, ActorID: "veh_3_0", X: 12.5, Y: 3.2, Speed: 10, Acceleration: 0.5, IsMalicious: true},
		{SimTime: 10, ActorID: "veh_7_1", X: 4, Y: 0, Speed: 8.25, Acceleration: 0, IsMalicious: false},
	}
	sampleAnomalies = []domain.AnomalyRecord{
		{SimTime: 0.3, ActorID: "veh_3_0", CANID: "0x2A0", Payload: "DEADBEEF", AttackCategory: "DoS", AttackType: "flooding"},
	}
)
