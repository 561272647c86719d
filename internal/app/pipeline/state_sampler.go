package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// StateSampler polls every live actor on the first tick and then once per
// sampling interval, and hands the batch to the sink.
type StateSampler struct {
	sim  ports.Simulation
	sink ports.RecordSink
	pol  ports.Policy
	obs  ports.Observability

	sampled bool
	last    float64
	written int
}

func NewStateSampler(sim ports.Simulation, sink ports.RecordSink, pol ports.Policy, obs ports.Observability) *StateSampler {
	return &StateSampler{sim: sim, sink: sink, pol: pol, obs: obs}
}

// MaybeSample samples when due and reports whether it did.
func (s *StateSampler) MaybeSample(now float64) (bool, error) {
	if s.sampled && now-s.last < s.pol.SamplingInterval {
		return false, nil
	}
	return true, s.Sample(now)
}

// Sample takes one snapshot at now. Actors that cannot be read are left out;
// only fatal adapter errors are returned.
func (s *StateSampler) Sample(now float64) error {
	start := time.Now()
	s.sampled = true
	s.last = now

	ids, err := s.sim.LiveActors()
	if err != nil {
		if domain.IsFatal(err) {
			return err
		}
		s.obs.LogWarn("live_actor_list_failed", err, ports.Field{Key: "sim_time", Value: now})
		ids = nil
	}

	rows := make([]domain.TrafficSnapshot, 0, len(ids))
	for _, id := range ids {
		st, err := s.sim.ActorState(id)
		if err != nil {
			if domain.IsFatal(err) {
				return err
			}
			if !errors.Is(err, domain.ErrActorQuery) {
				err = fmt.Errorf("%w: %w", domain.ErrActorQuery, err)
			}
			s.obs.IncCounter(ports.MetricActorQueriesFailed, 1)
			s.obs.LogWarn("actor_query_skipped", err,
				ports.Field{Key: "actor_id", Value: id},
				ports.Field{Key: "sim_time", Value: now})
			continue
		}
		rows = append(rows, domain.TrafficSnapshot{
			SimTime:      now,
			ActorID:      id,
			X:            st.X,
			Y:            st.Y,
			Speed:        st.Speed,
			Acceleration: st.Acceleration,
			IsMalicious:  st.TypeID == s.pol.MaliciousType,
		})
	}
	s.obs.SetGauge(ports.GaugeLiveActors, float64(len(rows)))

	if err := s.sink.WriteSnapshot(now, rows); err != nil {
		s.obs.IncCounter(ports.MetricSinkErrors, 1)
		s.obs.LogError("snapshot_write_failed", err,
			ports.Field{Key: "sink", Value: s.sink.Name()},
			ports.Field{Key: "sim_time", Value: now})
		return nil
	}
	s.written++
	s.obs.IncCounter(ports.MetricSnapshotsWritten, 1)
	s.obs.ObserveLatency(ports.LatencySnapshot, time.Since(start).Seconds())
	return nil
}

// Written is the number of snapshot batches the sink accepted.
func (s *StateSampler) Written() int { return s.written }
