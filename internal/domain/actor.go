package domain

// Color is an RGBA tuple as understood by the simulator GUI.
type Color struct {
	R, G, B, A uint8
}

var (
	ColorMalicious = Color{R: 255, G: 0, B: 0, A: 255}
	ColorNormal    = Color{R: 0, G: 255, B: 0, A: 255}
)

// ActorSpec describes a vehicle to add to the simulation.
type ActorSpec struct {
	ID          string
	RouteID     string
	TypeID      string
	Depart      string
	DepartSpeed string
}

// ActorState is the kinematic state of a live actor.
type ActorState struct {
	X            float64
	Y            float64
	Speed        float64
	Acceleration float64
	TypeID       string
}
