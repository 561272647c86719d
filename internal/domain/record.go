package domain

import "time"

// DatasetRecord is one labeled CAN message loaded from the input dataset.
type DatasetRecord struct {
	Timestamp      float64 `json:"timestamp"`
	CANID          string  `json:"can_id"`
	Payload        string  `json:"payload"`
	AttackCategory string  `json:"attack_category,omitempty"`
	AttackType     string  `json:"attack_type"`
	IsMalicious    bool    `json:"is_malicious"`
}

// NormalizedRecord is a DatasetRecord placed on the simulation clock.
// Index is the record's position in the input and breaks SimTime ties.
type NormalizedRecord struct {
	DatasetRecord
	SimTime float64 `json:"sim_time"`
	Index   int     `json:"index"`
}

// InjectedActor ties one record to the simulated vehicle created for it.
type InjectedActor struct {
	ActorID     string  `json:"actor_id"`
	IsMalicious bool    `json:"is_malicious"`
	InjectedAt  float64 `json:"injected_at"`
}

// InjectionEvent is what the journal keeps per created actor.
type InjectionEvent struct {
	Actor     InjectedActor    `json:"actor"`
	Record    NormalizedRecord `json:"record"`
	TickIndex int              `json:"tick"`
}

// TrafficSnapshot is one live actor observed at one sampling instant.
type TrafficSnapshot struct {
	SimTime      float64 `json:"sim_time"`
	ActorID      string  `json:"actor_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Speed        float64 `json:"speed"`
	Acceleration float64 `json:"acceleration"`
	IsMalicious  bool    `json:"is_malicious"`
}

// AnomalyRecord is emitted once per malicious injection.
type AnomalyRecord struct {
	SimTime        float64 `json:"sim_time"`
	ActorID        string  `json:"actor_id"`
	CANID          string  `json:"can_id"`
	Payload        string  `json:"payload"`
	AttackCategory string  `json:"attack_category"`
	AttackType     string  `json:"attack_type"`
}

// AnomalyFromInjection builds the ledger row for a malicious injection.
func AnomalyFromInjection(actor InjectedActor, rec NormalizedRecord) AnomalyRecord {
	return AnomalyRecord{
		SimTime:        actor.InjectedAt,
		ActorID:        actor.ActorID,
		CANID:          rec.CANID,
		Payload:        rec.Payload,
		AttackCategory: rec.AttackCategory,
		AttackType:     rec.AttackType,
	}
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunComplete  RunStatus = "complete"
	RunFailed    RunStatus = "failed"
	RunRecovered RunStatus = "recovered"
)

// RunSummary is written once per run to run_summary.json.
type RunSummary struct {
	RunID                   string    `json:"run_id"`
	Status                  RunStatus `json:"status"`
	Error                   string    `json:"error,omitempty"`
	TotalActorsInjected     int       `json:"total_actors_injected"`
	MaliciousActorsInjected int       `json:"malicious_actors_injected"`
	SkippedInjections       int       `json:"skipped_injections"`
	SnapshotsWritten        int       `json:"snapshots_written"`
	Duration                float64   `json:"duration"`
	FinalSimTime            float64   `json:"final_sim_time"`
	DatasetSize             int       `json:"dataset_size"`
	SourceRecords           int       `json:"source_records"`
	ScaleFactor             float64   `json:"scale_factor"`
	CompletedAt             time.Time `json:"completed_at"`
}
