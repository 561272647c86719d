package iovsim

import (
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

type (
	DatasetRecord    = domain.DatasetRecord
	NormalizedRecord = domain.NormalizedRecord
	InjectedActor    = domain.InjectedActor
	InjectionEvent   = domain.InjectionEvent
	TrafficSnapshot  = domain.TrafficSnapshot
	AnomalyRecord    = domain.AnomalyRecord
	RunSummary       = domain.RunSummary
	RunStatus        = domain.RunStatus
	ActorSpec        = domain.ActorSpec
	ActorState       = domain.ActorState
	Color            = domain.Color
	CommandError     = domain.CommandError

	// Simulation is the control channel a Launcher hands out.
	Simulation = ports.Simulation
	// Launcher starts or attaches to a simulation; see WithLauncher.
	Launcher = ports.Launcher
	// RecordSink receives snapshots, anomalies and the summary.
	RecordSink = ports.RecordSink
	// Observability is the logging and metrics port.
	Observability = ports.Observability
	Field         = ports.Field
)

const (
	RunRunning   = domain.RunRunning
	RunComplete  = domain.RunComplete
	RunFailed    = domain.RunFailed
	RunRecovered = domain.RunRecovered
)

var (
	ErrEmptyDataset   = domain.ErrEmptyDataset
	ErrAdapterStartup = domain.ErrAdapterStartup
	ErrAdapterFatal   = domain.ErrAdapterFatal
	ErrActorCreation  = domain.ErrActorCreation
	ErrActorQuery     = domain.ErrActorQuery
	ErrActorNotFound  = domain.ErrActorNotFound
)

// IsFatal reports whether err means the simulation can no longer be driven.
func IsFatal(err error) bool { return domain.IsFatal(err) }
