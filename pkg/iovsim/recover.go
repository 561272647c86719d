package iovsim

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/journal"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/sink"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/app/pipeline"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

// ErrRunFinalized is returned by Recover for a run that already wrote its
// final summary.
var ErrRunFinalized = errors.New("iovsim: run already finalized")

// Recover rebuilds anomalies.csv and run_summary.json of a run that was
// killed before it could finalize, using the injection journal it left in
// runDir. Skipped injections are not journaled and read as zero.
func Recover(runDir string, now time.Time) (RunSummary, error) {
	manifest, err := sink.ReadSummary(runDir)
	if err != nil {
		return RunSummary{}, fmt.Errorf("recover %s: %w", runDir, err)
	}
	if manifest.Status != domain.RunRunning {
		return manifest, fmt.Errorf("recover %s: %w (status %s)", runDir, ErrRunFinalized, manifest.Status)
	}

	jr, err := journal.Open(filepath.Join(runDir, sink.JournalDir))
	if err != nil {
		return RunSummary{}, fmt.Errorf("recover %s: %w", runDir, err)
	}
	defer jr.Close()

	ledger, err := pipeline.Replay(jr)
	if err != nil {
		return RunSummary{}, fmt.Errorf("recover %s: %w", runDir, err)
	}
	snapshots, err := sink.CountSnapshots(runDir)
	if err != nil {
		return RunSummary{}, fmt.Errorf("recover %s: %w", runDir, err)
	}

	files, err := sink.NewFileSink(runDir)
	if err != nil {
		return RunSummary{}, err
	}
	if err := files.WriteAnomalies(ledger.Anomalies()); err != nil {
		return RunSummary{}, err
	}

	summary := manifest
	summary.Status = domain.RunRecovered
	summary.Error = "run interrupted before finalize"
	summary.TotalActorsInjected = ledger.Total()
	summary.MaliciousActorsInjected = ledger.Malicious()
	summary.SnapshotsWritten = snapshots
	summary.FinalSimTime = ledger.LastInjectedAt()
	summary.CompletedAt = now.UTC()
	if err := files.WriteSummary(summary); err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}
