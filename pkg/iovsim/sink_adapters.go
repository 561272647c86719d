package iovsim

import (
	"errors"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("iovsim: channel sink closed")

// SinkHandlers are the callbacks behind NewCallbackSink. Nil handlers are
// skipped.
type SinkHandlers struct {
	Snapshot  func(simTime float64, rows []TrafficSnapshot) error
	Anomalies func(rows []AnomalyRecord) error
	Summary   func(s RunSummary) error
}

// SnapshotBatch is one sampling instant delivered by a channel sink.
type SnapshotBatch struct {
	SimTime float64
	Rows    []TrafficSnapshot
}

// NewCallbackSink adapts plain functions into a RecordSink so callers can
// mirror a run without defining structs. Use it with WithMirrorSink.
func NewCallbackSink(name string, h SinkHandlers) RecordSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, h: h}
}

// NewChannelSink exposes snapshot batches via a channel; it returns the sink,
// the read-only channel, and a close function that the caller should invoke
// once the run returns. Writes block while the channel is full.
func NewChannelSink(name string, buffer int) (RecordSink, <-chan SnapshotBatch, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan SnapshotBatch, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	h    SinkHandlers
}

func (s *callbackSink) WriteSnapshot(simTime float64, rows []TrafficSnapshot) error {
	if s.h.Snapshot == nil {
		return nil
	}
	return s.h.Snapshot(simTime, rows)
}

func (s *callbackSink) WriteAnomalies(rows []AnomalyRecord) error {
	if s.h.Anomalies == nil {
		return nil
	}
	return s.h.Anomalies(rows)
}

func (s *callbackSink) WriteSummary(sum RunSummary) error {
	if s.h.Summary == nil {
		return nil
	}
	return s.h.Summary(sum)
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan SnapshotBatch
	closed chan struct{}
	once   sync.Once
}

func (s *channelSink) WriteSnapshot(simTime float64, rows []TrafficSnapshot) error {
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	batch := SnapshotBatch{SimTime: simTime, Rows: append([]TrafficSnapshot(nil), rows...)}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) WriteAnomalies([]AnomalyRecord) error { return nil }

func (s *channelSink) WriteSummary(RunSummary) error { return nil }

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}
