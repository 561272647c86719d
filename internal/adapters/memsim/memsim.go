// Package memsim is a deterministic in-process traffic simulation. It backs
// dry runs and stands in for SUMO in tests.
package memsim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

type Options struct {
	StepLength  float64  // seconds per step
	Routes      []string // nil means DefaultRoutes; use an empty non-nil slice for none
	RouteLength float64  // metres an actor drives before it leaves
	BaseTypes   []string
	Seed        int64

	// FailAt drops the control channel once the clock reaches it (0 disables).
	FailAt float64
	// Reject, when set, can refuse individual actors.
	Reject func(spec domain.ActorSpec) error
	// Vanish marks actors that stay listed but can no longer be queried.
	Vanish func(actorID string) bool
}

var DefaultRoutes = []string{"route0", "route1", "route2"}

// Injection is one accepted AddActor call.
type Injection struct {
	Spec domain.ActorSpec
	At   float64
}

type actor struct {
	spec  domain.ActorSpec
	lane  int
	x     float64
	speed float64
	accel float64
	color domain.Color
}

type Simulation struct {
	opts    Options
	stepMs  int64
	nowMs   int64
	rng     *rand.Rand
	routes  map[string]int
	types   map[string]domain.Color
	actors  map[string]*actor
	history []Injection
	closed  bool
	dropped bool
}

func New(opts Options) *Simulation {
	if opts.StepLength <= 0 {
		opts.StepLength = 0.1
	}
	if opts.Routes == nil {
		opts.Routes = DefaultRoutes
	}
	if opts.RouteLength <= 0 {
		opts.RouteLength = 500
	}
	if len(opts.BaseTypes) == 0 {
		opts.BaseTypes = []string{"car"}
	}

	routes := make(map[string]int, len(opts.Routes))
	for i, r := range opts.Routes {
		routes[r] = i
	}
	types := make(map[string]domain.Color, len(opts.BaseTypes))
	for _, t := range opts.BaseTypes {
		types[t] = domain.Color{R: 255, G: 255, B: 0, A: 255}
	}

	return &Simulation{
		opts:   opts,
		stepMs: max(1, int64(math.Round(opts.StepLength*1000))),
		rng:    rand.New(rand.NewSource(opts.Seed)),
		routes: routes,
		types:  types,
		actors: make(map[string]*actor),
	}
}

func (s *Simulation) check(op string) error {
	if s.closed {
		return domain.Fatal(op, fmt.Errorf("simulation closed"))
	}
	if s.dropped {
		return domain.Fatal(op, fmt.Errorf("connection lost"))
	}
	return nil
}

func (s *Simulation) CurrentTime() (float64, error) {
	if err := s.check("current time"); err != nil {
		return 0, err
	}
	return s.now(), nil
}

func (s *Simulation) now() float64 { return float64(s.nowMs) / 1000 }

func (s *Simulation) AdvanceStep() error {
	if err := s.check("step"); err != nil {
		return err
	}
	dt := float64(s.stepMs) / 1000
	for id, a := range s.actors {
		a.speed += a.accel * dt
		if a.speed < 0 {
			a.speed = 0
		}
		a.x += a.speed * dt
		if a.x >= s.opts.RouteLength {
			delete(s.actors, id)
		}
	}
	s.nowMs += s.stepMs
	if s.opts.FailAt > 0 && s.now() >= s.opts.FailAt {
		s.dropped = true
	}
	return nil
}

func (s *Simulation) RouteIDs() ([]string, error) {
	if err := s.check("route ids"); err != nil {
		return nil, err
	}
	out := make([]string, len(s.opts.Routes))
	copy(out, s.opts.Routes)
	return out, nil
}

func (s *Simulation) TypeIDs() []string {
	out := make([]string, 0, len(s.types))
	for t := range s.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *Simulation) DefineActorType(baseType, typeID string, c domain.Color) error {
	if err := s.check("define type"); err != nil {
		return err
	}
	if _, ok := s.types[typeID]; !ok {
		if _, ok := s.types[baseType]; !ok {
			return &domain.CommandError{Command: "define type", Description: fmt.Sprintf("vehicle type '%s' is not known", baseType)}
		}
	}
	s.types[typeID] = c
	return nil
}

// SetTypeColor recolors an existing vehicle type.
func (s *Simulation) SetTypeColor(typeID string, c domain.Color) error {
	if err := s.check("type color"); err != nil {
		return err
	}
	if _, ok := s.types[typeID]; !ok {
		return &domain.CommandError{Command: "type color", Description: fmt.Sprintf("vehicle type '%s' is not known", typeID)}
	}
	s.types[typeID] = c
	return nil
}

func (s *Simulation) AddActor(spec domain.ActorSpec) error {
	if err := s.check("add actor"); err != nil {
		return err
	}
	reject := func(desc string) error {
		return fmt.Errorf("%w: %s: %w", domain.ErrActorCreation, spec.ID,
			&domain.CommandError{Command: "add vehicle", Description: desc})
	}
	if _, ok := s.actors[spec.ID]; ok {
		return reject(fmt.Sprintf("vehicle '%s' already exists", spec.ID))
	}
	lane, ok := s.routes[spec.RouteID]
	if !ok {
		return reject(fmt.Sprintf("invalid route '%s'", spec.RouteID))
	}
	if _, ok := s.types[spec.TypeID]; !ok {
		return reject(fmt.Sprintf("invalid type '%s'", spec.TypeID))
	}
	if s.opts.Reject != nil {
		if err := s.opts.Reject(spec); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrActorCreation, spec.ID, err)
		}
	}

	s.actors[spec.ID] = &actor{
		spec:  spec,
		lane:  lane,
		speed: s.departSpeed(spec.DepartSpeed),
		color: s.types[spec.TypeID],
	}
	s.history = append(s.history, Injection{Spec: spec, At: s.now()})
	return nil
}

func (s *Simulation) departSpeed(policy string) float64 {
	switch policy {
	case "", "random":
		return 5 + s.rng.Float64()*10
	case "max", "desired", "speedLimit":
		return 13.89
	default:
		if v, err := strconv.ParseFloat(policy, 64); err == nil && v >= 0 {
			return v
		}
		return 0
	}
}

func (s *Simulation) SetColor(actorID string, c domain.Color) error {
	if err := s.check("set color"); err != nil {
		return err
	}
	a, ok := s.actors[actorID]
	if !ok {
		return &domain.CommandError{Command: "set color", Description: fmt.Sprintf("vehicle '%s' is not known", actorID)}
	}
	a.color = c
	return nil
}

// Color returns the current color of a live actor.
func (s *Simulation) Color(actorID string) (domain.Color, bool) {
	a, ok := s.actors[actorID]
	if !ok {
		return domain.Color{}, false
	}
	return a.color, true
}

func (s *Simulation) LiveActors() ([]string, error) {
	if err := s.check("live actors"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.actors))
	for id := range s.actors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Simulation) ActorState(actorID string) (domain.ActorState, error) {
	if err := s.check("actor state"); err != nil {
		return domain.ActorState{}, err
	}
	a, ok := s.actors[actorID]
	if !ok || (s.opts.Vanish != nil && s.opts.Vanish(actorID)) {
		return domain.ActorState{}, fmt.Errorf("%w: %s", domain.ErrActorNotFound, actorID)
	}
	return domain.ActorState{
		X:            a.x,
		Y:            float64(a.lane) * 3.2,
		Speed:        a.speed,
		Acceleration: a.accel,
		TypeID:       a.spec.TypeID,
	}, nil
}

// History lists accepted injections in the order they happened.
func (s *Simulation) History() []Injection {
	out := make([]Injection, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Simulation) Closed() bool { return s.closed }

func (s *Simulation) Close() error {
	s.closed = true
	return nil
}

// Launcher hands out a fresh Simulation per Start and remembers the last one.
type Launcher struct {
	Options Options
	Last    *Simulation
}

func (l *Launcher) Start(ctx context.Context) (ports.Simulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAdapterStartup, err)
	}
	if step := l.Options.StepLength; step > 0 && math.Round(step*1000) < 1 {
		return nil, fmt.Errorf("%w: step length %gs is below the 1 ms clock", domain.ErrAdapterStartup, step)
	}
	l.Last = New(l.Options)
	return l.Last, nil
}

var (
	_ ports.Simulation = (*Simulation)(nil)
	_ ports.Launcher   = (*Launcher)(nil)
)
