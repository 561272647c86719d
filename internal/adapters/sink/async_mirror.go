package sink

import (
	"errors"
	"sync"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// ErrMirrorBacklog is returned when a snapshot is dropped because the mirror
// queue is full.
var ErrMirrorBacklog = errors.New("sink: mirror queue full")

const asyncDrainBatch = 32

// AsyncMirror moves snapshot writes of a slow sink onto a background
// goroutine behind a bounded queue, so a lagging database does not hold up
// the step loop. Anomalies and the summary are written synchronously once
// the queue has drained.
type AsyncMirror struct {
	sink ports.RecordSink
	q    ports.SnapshotQueue
	obs  ports.Observability

	seq   uint64
	wake  chan struct{}
	flush chan chan struct{}
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewAsyncMirror(s ports.RecordSink, q ports.SnapshotQueue, obs ports.Observability) *AsyncMirror {
	a := &AsyncMirror{
		sink:  s,
		q:     q,
		obs:   obs,
		wake:  make(chan struct{}, 1),
		flush: make(chan chan struct{}),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *AsyncMirror) Name() string { return a.sink.Name() }

func (a *AsyncMirror) WriteSnapshot(simTime float64, rows []domain.TrafficSnapshot) error {
	a.seq++
	item := ports.QueuedSnapshot{
		Seq:     a.seq,
		SimTime: simTime,
		Rows:    append([]domain.TrafficSnapshot(nil), rows...),
	}
	if !a.q.Enqueue(item) {
		return ErrMirrorBacklog
	}
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

func (a *AsyncMirror) WriteAnomalies(rows []domain.AnomalyRecord) error {
	a.Flush()
	return a.sink.WriteAnomalies(rows)
}

func (a *AsyncMirror) WriteSummary(s domain.RunSummary) error {
	a.Flush()
	return a.sink.WriteSummary(s)
}

// Flush blocks until every queued snapshot has been handed to the sink.
func (a *AsyncMirror) Flush() {
	reply := make(chan struct{})
	select {
	case a.flush <- reply:
		<-reply
	case <-a.done:
	}
}

// Close drains the queue and stops the background writer.
func (a *AsyncMirror) Close() {
	a.once.Do(func() { close(a.stop) })
	<-a.done
}

func (a *AsyncMirror) loop() {
	defer close(a.done)
	for {
		select {
		case <-a.wake:
			a.drain()
		case reply := <-a.flush:
			a.drain()
			close(reply)
		case <-a.stop:
			a.drain()
			return
		}
	}
}

func (a *AsyncMirror) drain() {
	for {
		batch := a.q.DequeueBatch(asyncDrainBatch)
		if len(batch) == 0 {
			return
		}
		for _, s := range batch {
			if err := a.sink.WriteSnapshot(s.SimTime, s.Rows); err != nil && a.obs != nil {
				a.obs.IncCounter(ports.MetricSinkErrors, 1)
				a.obs.LogError("mirror_snapshot_write_failed", err,
					ports.Field{Key: "sink", Value: a.sink.Name()},
					ports.Field{Key: "sim_time", Value: s.SimTime})
			}
		}
	}
}

var _ ports.RecordSink = (*AsyncMirror)(nil)
