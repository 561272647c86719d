package pipeline

import (
	"fmt"
	"math/rand"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// Injector walks the sorted schedule with a cursor and turns every record
// that has come due into a simulated actor.
type Injector struct {
	sim    ports.Simulation
	pol    ports.Policy
	obs    ports.Observability
	ledger *Ledger

	records []domain.NormalizedRecord
	cursor  int
	routes  []string
	rng     *rand.Rand
}

// NewInjector expects records sorted by SimTime, ties by Index.
func NewInjector(sim ports.Simulation, records []domain.NormalizedRecord, pol ports.Policy, ledger *Ledger, obs ports.Observability) *Injector {
	return &Injector{
		sim:     sim,
		pol:     pol,
		obs:     obs,
		ledger:  ledger,
		records: records,
		rng:     rand.New(rand.NewSource(pol.Seed)),
	}
}

// Prepare reads the route table and defines the malicious vehicle type.
// Only fatal adapter errors are returned.
func (in *Injector) Prepare() error {
	routes, err := in.sim.RouteIDs()
	if err != nil {
		if domain.IsFatal(err) {
			return err
		}
		in.obs.LogWarn("route_list_failed", err, ports.Field{Key: "fallback_route", Value: in.pol.FallbackRoute})
	}
	in.routes = routes

	if err := in.sim.DefineActorType(in.pol.NormalType, in.pol.MaliciousType, domain.ColorMalicious); err != nil {
		if domain.IsFatal(err) {
			return err
		}
		in.obs.LogWarn("malicious_type_define_failed", err,
			ports.Field{Key: "base_type", Value: in.pol.NormalType},
			ports.Field{Key: "type", Value: in.pol.MaliciousType})
	}
	return nil
}

// InjectDue injects every pending record with SimTime <= now, including any
// left behind by a clock jump. It returns only fatal adapter errors.
func (in *Injector) InjectDue(tick int, now float64) error {
	for in.cursor < len(in.records) && in.records[in.cursor].SimTime <= now {
		rec := in.records[in.cursor]
		in.cursor++
		if err := in.inject(tick, rec, now); err != nil {
			return err
		}
	}
	return nil
}

// Pending is the number of records not yet attempted.
func (in *Injector) Pending() int { return len(in.records) - in.cursor }

func (in *Injector) inject(tick int, rec domain.NormalizedRecord, now float64) error {
	spec := domain.ActorSpec{
		ID:          ActorID(tick, rec.Index),
		RouteID:     in.route(),
		TypeID:      in.pol.NormalType,
		Depart:      in.pol.Depart,
		DepartSpeed: in.pol.DepartSpeed,
	}
	color := domain.ColorNormal
	if rec.IsMalicious {
		spec.TypeID = in.pol.MaliciousType
		color = domain.ColorMalicious
	}

	if err := in.sim.AddActor(spec); err != nil {
		if domain.IsFatal(err) {
			return err
		}
		in.ledger.Skip(rec, err)
		return nil
	}

	in.ledger.Record(domain.InjectionEvent{
		Actor: domain.InjectedActor{
			ActorID:     spec.ID,
			IsMalicious: rec.IsMalicious,
			InjectedAt:  now,
		},
		Record:    rec,
		TickIndex: tick,
	})

	if err := in.sim.SetColor(spec.ID, color); err != nil {
		if domain.IsFatal(err) {
			return err
		}
		in.obs.LogWarn("set_color_failed", err, ports.Field{Key: "actor_id", Value: spec.ID})
	}
	return nil
}

func (in *Injector) route() string {
	if len(in.routes) == 0 {
		return in.pol.FallbackRoute
	}
	return in.routes[in.rng.Intn(len(in.routes))]
}

// ActorID is the deterministic id of the actor created for the record at
// index during tick.
func ActorID(tick, index int) string {
	return fmt.Sprintf("veh_%d_%d", tick, index)
}
