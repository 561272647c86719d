package ports

import "github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"

// RecordSink persists what a run produces.
type RecordSink interface {
	WriteSnapshot(simTime float64, rows []domain.TrafficSnapshot) error
	WriteAnomalies(rows []domain.AnomalyRecord) error
	WriteSummary(summary domain.RunSummary) error
	Name() string
}
