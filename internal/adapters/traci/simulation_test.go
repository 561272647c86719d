package traci

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/memsim"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

func dialFake(t *testing.T, opts memsim.Options) (*fakeSUMO, *Simulation) {
	t.Helper()
	srv := newFakeSUMO(t, opts)
	sim, err := Dial(context.Background(), srv.addr(), Config{CallTimeout: 2 * time.Second})
	require.NoError(t, err)
	return srv, sim
}

func TestDialInjectSampleClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, sim := dialFake(t, memsim.Options{StepLength: 0.1, Seed: 1})
	assert.Equal(t, int32(21), sim.APIVersion)
	assert.Equal(t, "SUMO fake", sim.Identifier)

	routes, err := sim.RouteIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"route0", "route1", "route2"}, routes)

	require.NoError(t, sim.DefineActorType("car", "malicious_vehicle", domain.ColorMalicious))
	// already defined: only recolored
	require.NoError(t, sim.DefineActorType("car", "malicious_vehicle", domain.ColorMalicious))

	spec := domain.ActorSpec{ID: "veh_0_0", RouteID: "route1", TypeID: "malicious_vehicle", Depart: "now", DepartSpeed: "10"}
	require.NoError(t, sim.AddActor(spec))
	require.NoError(t, sim.SetColor("veh_0_0", domain.ColorMalicious))
	require.NoError(t, sim.AdvanceStep())

	now, err := sim.CurrentTime()
	require.NoError(t, err)
	assert.InDelta(t, 0.1, now, 1e-9)

	live, err := sim.LiveActors()
	require.NoError(t, err)
	assert.Equal(t, []string{"veh_0_0"}, live)

	st, err := sim.ActorState("veh_0_0")
	require.NoError(t, err)
	assert.Equal(t, "malicious_vehicle", st.TypeID)
	assert.InDelta(t, 10.0, st.Speed, 1e-9)
	assert.InDelta(t, 1.0, st.X, 1e-9)
	assert.InDelta(t, 3.2, st.Y, 1e-9)

	require.NoError(t, sim.Close())
	require.NoError(t, sim.Close())
	srv.shutdown()

	assert.True(t, srv.sim.Closed())
	color, ok := srv.sim.Color("veh_0_0")
	require.True(t, ok)
	assert.Equal(t, domain.ColorMalicious, color)
	history := srv.sim.History()
	require.Len(t, history, 1)
	assert.Equal(t, spec, history[0].Spec)
	assert.Contains(t, srv.seen(), byte(cmdClose))
}

func TestAddActorRejectedKeepsConnection(t *testing.T) {
	srv, sim := dialFake(t, memsim.Options{})
	defer srv.shutdown()
	defer sim.Close()

	err := sim.AddActor(domain.ActorSpec{ID: "veh_0_0", RouteID: "nowhere", TypeID: "car"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrActorCreation))
	assert.False(t, domain.IsFatal(err))
	var cmdErr *domain.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, cmdErr.Description, "invalid route")

	require.NoError(t, sim.AddActor(domain.ActorSpec{ID: "veh_0_0", RouteID: "route0", TypeID: "car"}))
}

func TestActorStateUnknownIsNotFound(t *testing.T) {
	srv, sim := dialFake(t, memsim.Options{})
	defer srv.shutdown()
	defer sim.Close()

	_, err := sim.ActorState("ghost")
	assert.True(t, errors.Is(err, domain.ErrActorNotFound))
	assert.False(t, domain.IsFatal(err))
}

func TestDroppedConnectionIsFatal(t *testing.T) {
	srv, sim := dialFake(t, memsim.Options{})
	defer srv.shutdown()

	require.NoError(t, sim.AdvanceStep())
	srv.drop()

	err := sim.AdvanceStep()
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))

	_, err = sim.LiveActors()
	assert.True(t, domain.IsFatal(err))
	assert.NoError(t, sim.Close())
}

func TestDialGivesUpAfterRetries(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), addr, Config{ConnectRetries: 2, RetryDelay: 5 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAdapterStartup))
}

func TestDialHonoursContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Dial(ctx, addr, Config{ConnectRetries: 100, RetryDelay: time.Second})
	assert.True(t, errors.Is(err, domain.ErrAdapterStartup))
}

func TestLauncherStartMissingBinary(t *testing.T) {
	l, err := NewLauncher(Config{Binary: "/nonexistent/sumo-bin", ConfigPath: "scenario.sumocfg"})
	require.NoError(t, err)

	_, err = l.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAdapterStartup))
}

func TestLauncherAttach(t *testing.T) {
	srv := newFakeSUMO(t, memsim.Options{})
	defer srv.shutdown()

	host, port, err := net.SplitHostPort(srv.addr())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	cfg := Config{Attach: true, Host: host, Port: p}

	l, err := NewLauncher(cfg)
	require.NoError(t, err)
	sim, err := l.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceStep())
	require.NoError(t, sim.Close())
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.Equal(t, "sumo", c.Binary)
	assert.Equal(t, "127.0.0.1", c.Host)
	assert.Equal(t, 0, c.Port)
	assert.Equal(t, 0.1, c.StepLength)
	assert.Error(t, c.Validate(), "launch mode needs a scenario")

	attach := Config{Attach: true}
	attach.ApplyDefaults()
	assert.Equal(t, 8813, attach.Port)
	assert.NoError(t, attach.Validate())
}
