package traci

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/memsim"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

// fakeSUMO answers TraCI requests from a memsim.Simulation.
type fakeSUMO struct {
	t   *testing.T
	ln  net.Listener
	sim *memsim.Simulation

	mu       sync.Mutex
	nc       net.Conn
	commands []byte
	done     chan struct{}
}

func newFakeSUMO(t *testing.T, opts memsim.Options) *fakeSUMO {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSUMO{t: t, ln: ln, sim: memsim.New(opts), done: make(chan struct{})}
	go f.serve()
	return f
}

func (f *fakeSUMO) addr() string { return f.ln.Addr().String() }

// drop cuts the connection as a crashed simulator would.
func (f *fakeSUMO) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nc != nil {
		_ = f.nc.Close()
	}
}

// shutdown stops accepting and waits for the serving goroutine.
func (f *fakeSUMO) shutdown() {
	_ = f.ln.Close()
	f.drop()
	<-f.done
}

func (f *fakeSUMO) seen() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.commands...)
}

func (f *fakeSUMO) serve() {
	defer close(f.done)
	nc, err := f.ln.Accept()
	if err != nil {
		return
	}
	_ = f.ln.Close()
	f.mu.Lock()
	f.nc = nc
	f.mu.Unlock()
	defer nc.Close()

	var hdr [4]byte
	for {
		if _, err := io.ReadFull(nc, hdr[:]); err != nil {
			return
		}
		body := make([]byte, binary.BigEndian.Uint32(hdr[:])-4)
		if _, err := io.ReadFull(nc, body); err != nil {
			return
		}
		id, cmd := newReader(body).command()
		f.mu.Lock()
		f.commands = append(f.commands, id)
		f.mu.Unlock()

		out, closeAfter := f.handle(id, cmd)
		msg := binary.BigEndian.AppendUint32(nil, uint32(len(out)+4))
		if _, err := nc.Write(append(msg, out...)); err != nil || closeAfter {
			return
		}
	}
}

func status(id byte, err error) []byte {
	var s storage
	if err == nil {
		s.ubyte(rtypeOK)
		s.str("")
	} else {
		desc := err.Error()
		var cmdErr *domain.CommandError
		if errors.As(err, &cmdErr) {
			desc = cmdErr.Description
		}
		s.ubyte(rtypeErr)
		s.str(desc)
	}
	return appendCommand(nil, id, s.buf)
}

func (f *fakeSUMO) handle(id byte, cmd *reader) ([]byte, bool) {
	switch id {
	case cmdGetVersion:
		var v storage
		v.int32(21)
		v.str("SUMO fake")
		return appendCommand(status(id, nil), id, v.buf), false
	case cmdSimStep:
		out := status(id, f.sim.AdvanceStep())
		return binary.BigEndian.AppendUint32(out, 0), false
	case cmdClose:
		_ = f.sim.Close()
		return status(id, nil), true
	case cmdGetSimVariable, cmdGetRouteVariable, cmdGetVehicleTypeVariable, cmdGetVehicleVariable:
		variable := cmd.ubyte()
		obj := cmd.str()
		value, err := f.get(id, variable, obj)
		if err != nil {
			return status(id, err), false
		}
		var resp storage
		resp.ubyte(variable)
		resp.str(obj)
		resp.buf = append(resp.buf, value...)
		return appendCommand(status(id, nil), id+responseOffset, resp.buf), false
	case cmdSetVehicleTypeVariable, cmdSetVehicleVariable:
		variable := cmd.ubyte()
		obj := cmd.str()
		return status(id, f.set(id, variable, obj, cmd)), false
	default:
		return status(id, &domain.CommandError{Description: "not implemented"}), false
	}
}

func (f *fakeSUMO) get(id, variable byte, obj string) ([]byte, error) {
	var v storage
	switch {
	case id == cmdGetSimVariable && variable == varTime:
		now, err := f.sim.CurrentTime()
		if err != nil {
			return nil, err
		}
		v.typedDouble(now)
	case id == cmdGetRouteVariable && variable == varIDList:
		routes, err := f.sim.RouteIDs()
		if err != nil {
			return nil, err
		}
		v.ubyte(typeStringList)
		v.strList(routes)
	case id == cmdGetVehicleTypeVariable && variable == varIDList:
		v.ubyte(typeStringList)
		v.strList(f.sim.TypeIDs())
	case id == cmdGetVehicleVariable && variable == varIDList:
		live, err := f.sim.LiveActors()
		if err != nil {
			return nil, err
		}
		v.ubyte(typeStringList)
		v.strList(live)
	case id == cmdGetVehicleVariable:
		st, err := f.sim.ActorState(obj)
		if err != nil {
			return nil, &domain.CommandError{Description: "Vehicle '" + obj + "' is not known"}
		}
		switch variable {
		case varPosition:
			v.ubyte(typePosition2D)
			v.double(st.X)
			v.double(st.Y)
		case varSpeed:
			v.typedDouble(st.Speed)
		case varAcceleration:
			v.typedDouble(st.Acceleration)
		case varType:
			v.typedString(st.TypeID)
		default:
			return nil, &domain.CommandError{Description: "unsupported variable"}
		}
	default:
		return nil, &domain.CommandError{Description: "unsupported variable"}
	}
	return v.buf, nil
}

func (f *fakeSUMO) set(id, variable byte, obj string, value *reader) error {
	switch {
	case id == cmdSetVehicleTypeVariable && variable == varCopy:
		return f.sim.DefineActorType(obj, value.typedString(), domain.Color{})
	case id == cmdSetVehicleTypeVariable && variable == varColor:
		return f.sim.SetTypeColor(obj, value.color())
	case id == cmdSetVehicleVariable && variable == varColor:
		return f.sim.SetColor(obj, value.color())
	case id == cmdSetVehicleVariable && variable == varAddFull:
		value.expectType(typeCompound)
		if n := value.int32(); n != 14 {
			return &domain.CommandError{Description: "add requires 14 parameters"}
		}
		spec := domain.ActorSpec{ID: obj}
		spec.RouteID = value.typedString()
		spec.TypeID = value.typedString()
		spec.Depart = value.typedString()
		_ = value.typedString()
		_ = value.typedString()
		spec.DepartSpeed = value.typedString()
		if value.err != nil {
			return value.err
		}
		return f.sim.AddActor(spec)
	default:
		return &domain.CommandError{Description: "unsupported variable"}
	}
}
