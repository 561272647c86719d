package traci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// Config captures how to reach SUMO: launch it, or attach to a running one.
type Config struct {
	Binary         string        `yaml:"binary"`
	ConfigPath     string        `yaml:"config_path"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"gte=0,lte=65535"`
	Attach         bool          `yaml:"attach"`
	ExtraArgs      []string      `yaml:"extra_args"`
	ConnectRetries int           `yaml:"connect_retries" validate:"gte=0"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	CallTimeout    time.Duration `yaml:"call_timeout"`

	// StepLength is taken from the run policy.
	StepLength float64 `yaml:"-"`
	// Output receives SUMO's stdout/stderr; nil discards it.
	Output io.Writer `yaml:"-"`
}

func (c *Config) ApplyDefaults() {
	if c.Binary == "" {
		c.Binary = "sumo"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 && c.Attach {
		c.Port = 8813
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 40
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 250 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.StepLength <= 0 {
		c.StepLength = 0.1
	}
}

func (c *Config) Validate() error {
	if !c.Attach && c.ConfigPath == "" {
		return errors.New("config_path is required unless attach is set")
	}
	if c.Attach && c.Port == 0 {
		return errors.New("port is required when attaching")
	}
	return nil
}

func (c *Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Launcher starts SUMO per its Config and connects over TraCI.
type Launcher struct {
	cfg Config
}

func NewLauncher(cfg Config) (*Launcher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Launcher{cfg: cfg}, nil
}

func (l *Launcher) Start(ctx context.Context) (ports.Simulation, error) {
	if l.cfg.Attach {
		sim, err := Dial(ctx, l.cfg.addr(), l.cfg)
		if err != nil {
			return nil, err
		}
		return sim, nil
	}

	cfg := l.cfg
	if cfg.Port == 0 {
		port, err := freePort(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrAdapterStartup, err)
		}
		cfg.Port = port
	}
	sumoCfg, err := filepath.Abs(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAdapterStartup, err)
	}

	args := []string{
		"-c", sumoCfg,
		"--step-length", strconv.FormatFloat(cfg.StepLength, 'f', -1, 64),
		"--no-warnings", "true",
		"--remote-port", strconv.Itoa(cfg.Port),
	}
	args = append(args, cfg.ExtraArgs...)

	cmd := exec.Command(cfg.Binary, args...)
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", domain.ErrAdapterStartup, cfg.Binary, err)
	}
	proc := watchProcess(cmd)

	sim, err := dial(ctx, cfg.addr(), cfg, proc.exited)
	if err != nil {
		_ = proc.stop()
		return nil, err
	}
	sim.proc = proc
	go func() {
		// a dead SUMO must not leave a call blocked until its deadline
		select {
		case <-proc.exited:
			_ = sim.c.close()
		case <-proc.stopping:
		}
	}()
	return sim, nil
}

// Dial attaches to a SUMO instance that is already listening on addr.
func Dial(ctx context.Context, addr string, cfg Config) (*Simulation, error) {
	cfg.ApplyDefaults()
	return dial(ctx, addr, cfg, nil)
}

func dial(ctx context.Context, addr string, cfg Config, exited <-chan struct{}) (*Simulation, error) {
	var (
		d       net.Dialer
		lastErr error
	)
	for attempt := 0; attempt <= cfg.ConnectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", domain.ErrAdapterStartup, ctx.Err())
			case <-exited:
				return nil, fmt.Errorf("%w: simulator exited before accepting connections", domain.ErrAdapterStartup)
			case <-time.After(cfg.RetryDelay):
			}
		}

		nc, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		if tcp, ok := nc.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		sim, err := newSimulation(newConn(nc, cfg.CallTimeout))
		if err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("%w: handshake with %s: %w", domain.ErrAdapterStartup, addr, err)
		}
		return sim, nil
	}
	return nil, fmt.Errorf("%w: connect %s: %w", domain.ErrAdapterStartup, addr, lastErr)
}

// process reaps a launched simulator.
type process struct {
	cmd      *exec.Cmd
	exited   chan struct{}
	stopping chan struct{}
	stopOnce sync.Once
	waitErr  error
}

func watchProcess(cmd *exec.Cmd) *process {
	p := &process{
		cmd:      cmd,
		exited:   make(chan struct{}),
		stopping: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p
}

func (p *process) hasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// stop gives the simulator a few seconds to exit on its own, then kills it.
func (p *process) stop() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopping)
		select {
		case <-p.exited:
		case <-time.After(5 * time.Second):
			if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = kerr
			}
			<-p.exited
		}
	})
	return err
}

func freePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

var _ ports.Launcher = (*Launcher)(nil)
