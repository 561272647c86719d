package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// rows per INSERT; keeps the statement under the 65535 bind parameter limit
const timescaleBatchRows = 1000

// TimescaleSink mirrors a run into three tables named after a common prefix:
// <prefix>_traffic, <prefix>_anomalies and <prefix>_runs.
type TimescaleSink struct {
	db     *sql.DB
	prefix string
	runID  string
}

// SQL drivers registered for OpenTimescale.
const (
	DriverPQ  = "postgres" // lib/pq
	DriverPGX = "pgx"      // jackc/pgx stdlib
)

// OpenTimescale opens connString with the named database/sql driver and
// pings it. An empty driver means lib/pq.
func OpenTimescale(ctx context.Context, driver, connString string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverPQ
	}
	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping timescale: %w", err)
	}
	return db, nil
}

func NewTimescaleSink(db *sql.DB, prefix, runID string) *TimescaleSink {
	if prefix == "" {
		prefix = "iov"
	}
	return &TimescaleSink{db: db, prefix: prefix, runID: runID}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteSnapshot(simTime float64, rows []domain.TrafficSnapshot) error {
	cols := []string{"run_id", "sim_time", "vehicle_id", "x", "y", "speed", "acceleration", "is_malicious"}
	return t.insert(t.prefix+"_traffic", cols, "(run_id, sim_time, vehicle_id)", len(rows), func(i int) []any {
		r := rows[i]
		return []any{t.runID, r.SimTime, r.ActorID, r.X, r.Y, r.Speed, r.Acceleration, r.IsMalicious}
	})
}

func (t *TimescaleSink) WriteAnomalies(rows []domain.AnomalyRecord) error {
	cols := []string{"run_id", "sim_time", "vehicle_id", "can_id", "payload", "attack_category", "attack_type"}
	return t.insert(t.prefix+"_anomalies", cols, "(run_id, vehicle_id)", len(rows), func(i int) []any {
		r := rows[i]
		return []any{t.runID, r.SimTime, r.ActorID, r.CANID, r.Payload, r.AttackCategory, r.AttackType}
	})
}

func (t *TimescaleSink) WriteSummary(s domain.RunSummary) error {
	cols := []string{"run_id", "status", "total_actors", "malicious_actors", "skipped_injections",
		"duration", "final_sim_time", "dataset_size", "completed_at"}
	return t.insert(t.prefix+"_runs", cols, "(run_id)", 1, func(int) []any {
		return []any{s.RunID, string(s.Status), s.TotalActorsInjected, s.MaliciousActorsInjected,
			s.SkippedInjections, s.Duration, s.FinalSimTime, s.DatasetSize, s.CompletedAt}
	})
}

// insert writes n rows in chunks with ON CONFLICT DO NOTHING so a replayed
// batch is harmless.
func (t *TimescaleSink) insert(table string, cols []string, conflict string, n int, row func(i int) []any) error {
	for start := 0; start < n; start += timescaleBatchRows {
		end := min(start+timescaleBatchRows, n)

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(table)
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(") VALUES ")

		args := make([]any, 0, (end-start)*len(cols))
		for i := start; i < end; i++ {
			if i > start {
				b.WriteString(",")
			}
			b.WriteString("(")
			for c := range cols {
				if c > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, "$%d", len(args)+c+1)
			}
			b.WriteString(")")
			args = append(args, row(i)...)
		}
		b.WriteString(" ON CONFLICT ")
		b.WriteString(conflict)
		b.WriteString(" DO NOTHING")

		if _, err := t.db.Exec(b.String(), args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

var _ ports.RecordSink = (*TimescaleSink)(nil)
