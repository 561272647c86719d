package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/observability"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/traci"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

const (
	BackendSUMO   = "sumo"
	BackendMemory = "memory"
)

type Config struct {
	Policy     ports.Policy            `yaml:"policy"`
	Dataset    DatasetConfig           `yaml:"dataset"`
	Simulation SimulationConfig        `yaml:"simulation"`
	Output     OutputConfig            `yaml:"output"`
	Metrics    MetricsConfig           `yaml:"metrics"`
	Log        observability.LogConfig `yaml:"log"`
	Timescale  TimescaleConfig         `yaml:"timescale"`
	Influx     InfluxConfig            `yaml:"influx"`
}

type DatasetConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type SimulationConfig struct {
	Backend string       `yaml:"backend" validate:"oneof=sumo memory"`
	SUMO    traci.Config `yaml:"sumo"`
}

type OutputConfig struct {
	Dir string `yaml:"dir" validate:"required"`
	// MirrorQueue is how many snapshots a database mirror may lag behind.
	MirrorQueue int `yaml:"mirror_queue" validate:"gte=0"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"` // empty disables the endpoint
}

type TimescaleConfig struct {
	Driver     string `yaml:"driver" validate:"omitempty,oneof=postgres pgx"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"` // table prefix
}

type InfluxConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" validate:"required_with=URL"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read only parses the file. Unknown keys are rejected; defaults and
// validation are left to Resolve.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Resolve applies defaults and validates. Call it again after overriding
// fields, e.g. from command line flags.
func (c *Config) Resolve() error {
	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	p := &c.Policy
	if p.Duration == 0 {
		p.Duration = 3600
	}
	if p.SampleRate == 0 {
		p.SampleRate = 0.01
	}
	if p.Seed == 0 {
		p.Seed = 42
	}
	if p.StepLength == 0 {
		p.StepLength = 0.1
	}
	if p.SamplingInterval == 0 {
		p.SamplingInterval = 10
	}
	if p.ProgressInterval == 0 {
		p.ProgressInterval = 100
	}
	if p.Fast {
		p.StepDelay = 0
	} else if p.StepDelay == 0 {
		p.StepDelay = 10 * time.Millisecond
	}
	if p.NormalType == "" {
		p.NormalType = "car"
	}
	if p.MaliciousType == "" {
		p.MaliciousType = "malicious_vehicle"
	}
	if p.FallbackRoute == "" {
		p.FallbackRoute = "route0"
	}
	if p.Depart == "" {
		p.Depart = "now"
	}
	if p.DepartSpeed == "" {
		p.DepartSpeed = "random"
	}

	if c.Simulation.Backend == "" {
		c.Simulation.Backend = BackendSUMO
	}
	c.Simulation.SUMO.StepLength = p.StepLength
	c.Simulation.SUMO.ApplyDefaults()

	if c.Output.Dir == "" {
		c.Output.Dir = "logs"
	}
	if c.Output.MirrorQueue == 0 {
		c.Output.MirrorQueue = 256
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "iov"
	}
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Simulation.Backend == BackendSUMO {
		if err := c.Simulation.SUMO.Validate(); err != nil {
			return fmt.Errorf("simulation.sumo: %w", err)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "required_with":
		return fmt.Errorf("%s is required when %s is set", field, strings.ToLower(e.Param()))
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", field, e.Param(), e.Value())
	case "gt", "gte", "lt", "lte":
		return fmt.Errorf("%s must be %s %s, got %v", field, e.Tag(), e.Param(), e.Value())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}
