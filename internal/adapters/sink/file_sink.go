package sink

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

const (
	TrafficDir   = "traffic"
	AnomalyDir   = "anomalies"
	JournalDir   = "journal"
	AnomalyFile  = "anomalies.csv"
	SummaryFile  = "run_summary.json"
	runDirPrefix = "simulation_"
)

var (
	snapshotHeader = []string{"sim_time", "vehicle_id", "x", "y", "speed", "acceleration", "is_malicious"}
	anomalyHeader  = []string{"sim_time", "vehicle_id", "can_id", "payload", "attack_category", "attack_type"}
)

// NewRunDir creates base/simulation_<YYYYmmdd_HHMMSS>, adding _2, _3, ...
// when a run already claimed that second.
func NewRunDir(base string, now time.Time) (string, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	name := runDirPrefix + now.Format("20060102_150405")
	dir := filepath.Join(base, name)
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		dir = filepath.Join(base, fmt.Sprintf("%s_%d", name, n))
	}
}

// SnapshotFileName names the traffic file for one sampling instant.
func SnapshotFileName(simTime float64) string {
	return fmt.Sprintf("snapshot_%.1f.csv", simTime)
}

// FileSink lays a run out on disk:
//
//	traffic/snapshot_<t>.csv
//	anomalies/anomalies.csv
//	run_summary.json
type FileSink struct {
	dir string
}

func NewFileSink(runDir string) (*FileSink, error) {
	for _, sub := range []string{TrafficDir, AnomalyDir} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &FileSink{dir: runDir}, nil
}

func (f *FileSink) Name() string { return "files" }

func (f *FileSink) Dir() string { return f.dir }

func (f *FileSink) WriteSnapshot(simTime float64, rows []domain.TrafficSnapshot) error {
	path := filepath.Join(f.dir, TrafficDir, SnapshotFileName(simTime))
	return writeCSV(path, snapshotHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			formatFloat(r.SimTime),
			r.ActorID,
			formatFloat(r.X),
			formatFloat(r.Y),
			formatFloat(r.Speed),
			formatFloat(r.Acceleration),
			formatBool(r.IsMalicious),
		}
	})
}

func (f *FileSink) WriteAnomalies(rows []domain.AnomalyRecord) error {
	path := filepath.Join(f.dir, AnomalyDir, AnomalyFile)
	return writeCSV(path, anomalyHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			formatFloat(r.SimTime),
			r.ActorID,
			r.CANID,
			r.Payload,
			r.AttackCategory,
			r.AttackType,
		}
	})
}

func (f *FileSink) WriteSummary(summary domain.RunSummary) error {
	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return writeAtomic(filepath.Join(f.dir, SummaryFile), append(b, '\n'))
}

// ReadSummary loads run_summary.json from a run directory.
func ReadSummary(runDir string) (domain.RunSummary, error) {
	var s domain.RunSummary
	b, err := os.ReadFile(filepath.Join(runDir, SummaryFile))
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", SummaryFile, err)
	}
	return s, nil
}

// CountSnapshots counts the snapshot files already written under runDir.
func CountSnapshots(runDir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(runDir, TrafficDir, "snapshot_*.csv"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	tmp := path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		fh.Close()
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			fh.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

var _ ports.RecordSink = (*FileSink)(nil)
