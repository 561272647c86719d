package sink

import (
	"context"
	"math"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// InfluxSink mirrors a run into InfluxDB. Simulation seconds are laid onto
// wall time starting at the run's start.
type InfluxSink struct {
	write   api.WriteAPIBlocking
	runID   string
	start   time.Time
	timeout time.Duration
}

func NewInfluxSink(w api.WriteAPIBlocking, runID string, start time.Time) *InfluxSink {
	return &InfluxSink{write: w, runID: runID, start: start, timeout: 10 * time.Second}
}

// NewInfluxClient builds the client used by NewInfluxSink; callers close it.
func NewInfluxClient(url, token string) influxdb2.Client {
	return influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().SetPrecision(time.Millisecond))
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) at(simTime float64) time.Time {
	return s.start.Add(time.Duration(math.Round(simTime * float64(time.Second))))
}

func (s *InfluxSink) WriteSnapshot(simTime float64, rows []domain.TrafficSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, influxdb2.NewPoint("iov_traffic",
			map[string]string{
				"run_id":       s.runID,
				"vehicle_id":   r.ActorID,
				"is_malicious": strconv.FormatBool(r.IsMalicious),
			},
			map[string]any{
				"sim_time":     r.SimTime,
				"x":            r.X,
				"y":            r.Y,
				"speed":        r.Speed,
				"acceleration": r.Acceleration,
			},
			s.at(simTime)))
	}
	return s.writePoints(points)
}

func (s *InfluxSink) WriteAnomalies(rows []domain.AnomalyRecord) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, influxdb2.NewPoint("iov_anomaly",
			map[string]string{
				"run_id":          s.runID,
				"attack_category": r.AttackCategory,
				"attack_type":     r.AttackType,
			},
			map[string]any{
				"sim_time":   r.SimTime,
				"vehicle_id": r.ActorID,
				"can_id":     r.CANID,
				"payload":    r.Payload,
			},
			s.at(r.SimTime)))
	}
	return s.writePoints(points)
}

func (s *InfluxSink) WriteSummary(sum domain.RunSummary) error {
	p := influxdb2.NewPoint("iov_run",
		map[string]string{"run_id": s.runID, "status": string(sum.Status)},
		map[string]any{
			"total_actors":       sum.TotalActorsInjected,
			"malicious_actors":   sum.MaliciousActorsInjected,
			"skipped_injections": sum.SkippedInjections,
			"dataset_size":       sum.DatasetSize,
			"final_sim_time":     sum.FinalSimTime,
		},
		sum.CompletedAt)
	return s.writePoints([]*write.Point{p})
}

func (s *InfluxSink) writePoints(points []*write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.write.WritePoint(ctx, points...)
}

var _ ports.RecordSink = (*InfluxSink)(nil)
