package ports

import "github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogWarn(msg string, err error, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordSkippedInjection(rec domain.NormalizedRecord, err error)
}

type Field struct {
	Key   string
	Value any
}

// Metric names understood by the Prometheus observability adapter.
const (
	MetricActorsInjected     = "iov_actors_injected_total"
	MetricMaliciousInjected  = "iov_malicious_injected_total"
	MetricInjectionsSkipped  = "iov_injections_skipped_total"
	MetricActorQueriesFailed = "iov_actor_queries_skipped_total"
	MetricSnapshotsWritten   = "iov_snapshots_written_total"
	MetricSinkErrors         = "iov_sink_errors_total"

	GaugeSimTime     = "iov_sim_time_seconds"
	GaugeLiveActors  = "iov_live_actors"
	GaugeJournalSize = "iov_journal_size_bytes"

	LatencyStep     = "iov_step_latency_seconds"
	LatencySnapshot = "iov_snapshot_latency_seconds"
)
