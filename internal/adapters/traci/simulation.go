package traci

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// Simulation drives SUMO through one TraCI connection.
type Simulation struct {
	c    *conn
	proc *process

	APIVersion int32
	Identifier string

	closeOnce sync.Once
	closeErr  error
}

func newSimulation(c *conn) (*Simulation, error) {
	r, err := c.exchange(cmdGetVersion, nil)
	if err != nil {
		return nil, err
	}
	_, body := r.command()
	api := body.int32()
	ident := body.str()
	if err := firstErr(r.err, body.err); err != nil {
		return nil, domain.Fatal("get version", err)
	}
	return &Simulation{c: c, APIVersion: api, Identifier: ident}, nil
}

func (s *Simulation) CurrentTime() (float64, error) {
	return s.c.getDouble(cmdGetSimVariable, varTime, "")
}

func (s *Simulation) AdvanceStep() error {
	var st storage
	st.double(0)
	if _, err := s.c.exchange(cmdSimStep, st.buf); err != nil {
		return domain.Fatal("simulation step", err)
	}
	return nil
}

func (s *Simulation) RouteIDs() ([]string, error) {
	return s.c.getStringList(cmdGetRouteVariable, varIDList, "")
}

// DefineActorType copies baseType into typeID unless typeID already exists,
// then paints it.
func (s *Simulation) DefineActorType(baseType, typeID string, c domain.Color) error {
	types, err := s.c.getStringList(cmdGetVehicleTypeVariable, varIDList, "")
	if err != nil {
		return err
	}
	if !slices.Contains(types, typeID) {
		var v storage
		v.typedString(typeID)
		if err := s.c.set(cmdSetVehicleTypeVariable, varCopy, baseType, v.buf); err != nil {
			return err
		}
	}
	var v storage
	v.color(c)
	return s.c.set(cmdSetVehicleTypeVariable, varColor, typeID, v.buf)
}

func (s *Simulation) AddActor(spec domain.ActorSpec) error {
	var v storage
	v.ubyte(typeCompound)
	v.int32(14)
	v.typedString(spec.RouteID)
	v.typedString(spec.TypeID)
	v.typedString(orDefault(spec.Depart, "now"))
	v.typedString("first") // departLane
	v.typedString("base")  // departPos
	v.typedString(orDefault(spec.DepartSpeed, "0"))
	v.typedString("current") // arrivalLane
	v.typedString("max")     // arrivalPos
	v.typedString("current") // arrivalSpeed
	v.typedString("")        // fromTaz
	v.typedString("")        // toTaz
	v.typedString("")        // line
	v.typedInt(0)            // personCapacity
	v.typedInt(0)            // personNumber

	err := s.c.set(cmdSetVehicleVariable, varAddFull, spec.ID, v.buf)
	if err == nil || domain.IsFatal(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrActorCreation, spec.ID, err)
}

func (s *Simulation) SetColor(actorID string, c domain.Color) error {
	var v storage
	v.color(c)
	return s.c.set(cmdSetVehicleVariable, varColor, actorID, v.buf)
}

func (s *Simulation) LiveActors() ([]string, error) {
	return s.c.getStringList(cmdGetVehicleVariable, varIDList, "")
}

func (s *Simulation) ActorState(actorID string) (domain.ActorState, error) {
	var (
		st  domain.ActorState
		err error
	)
	if st.X, st.Y, err = s.c.getPosition(cmdGetVehicleVariable, actorID); err != nil {
		return st, notFound(actorID, err)
	}
	if st.Speed, err = s.c.getDouble(cmdGetVehicleVariable, varSpeed, actorID); err != nil {
		return st, notFound(actorID, err)
	}
	if st.Acceleration, err = s.c.getDouble(cmdGetVehicleVariable, varAcceleration, actorID); err != nil {
		return st, notFound(actorID, err)
	}
	if st.TypeID, err = s.c.getString(cmdGetVehicleVariable, varType, actorID); err != nil {
		return st, notFound(actorID, err)
	}
	return st, nil
}

// Close asks SUMO to finish, drops the socket and reaps a launched process.
// Later calls return the first result.
func (s *Simulation) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.proc == nil || !s.proc.hasExited() {
			if _, err := s.c.exchange(cmdClose, nil); err != nil && !domain.IsFatal(err) {
				errs = append(errs, err)
			}
		}
		if err := s.c.close(); err != nil && !isClosedErr(err) {
			errs = append(errs, err)
		}
		if s.proc != nil {
			if err := s.proc.stop(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func notFound(actorID string, err error) error {
	var cmdErr *domain.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Errorf("%w: %s: %w", domain.ErrActorNotFound, actorID, err)
	}
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var _ ports.Simulation = (*Simulation)(nil)
