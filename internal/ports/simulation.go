package ports

import (
	"context"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

// Simulation is the control channel of one running traffic simulation.
// Calls are synchronous; errors wrapping domain.ErrAdapterFatal mean the
// channel is gone, anything else concerns a single command.
type Simulation interface {
	CurrentTime() (float64, error)
	AdvanceStep() error

	RouteIDs() ([]string, error)
	DefineActorType(baseType, typeID string, c domain.Color) error
	AddActor(spec domain.ActorSpec) error
	SetColor(actorID string, c domain.Color) error

	LiveActors() ([]string, error)
	ActorState(actorID string) (domain.ActorState, error)

	// Close releases the simulation. Safe to call more than once.
	Close() error
}

// Launcher starts (or attaches to) a simulation.
type Launcher interface {
	Start(ctx context.Context) (Simulation, error)
}
