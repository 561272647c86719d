package iovsim

import (
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/observability"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/traci"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/app/config"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls scheduling, sampling and actor parameters.
	Policy = ports.Policy
	// SUMOConfig describes how SUMO is launched or attached to.
	SUMOConfig = traci.Config
	// DatasetConfig points at the labeled CAN dataset.
	DatasetConfig = config.DatasetConfig
	// SimulationConfig selects the simulation backend.
	SimulationConfig = config.SimulationConfig
	// OutputConfig is where run directories are created.
	OutputConfig = config.OutputConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the zap logger.
	LogConfig = observability.LogConfig
	// TimescaleConfig configures the optional SQL mirror.
	TimescaleConfig = config.TimescaleConfig
	// InfluxConfig configures the optional InfluxDB mirror.
	InfluxConfig = config.InfluxConfig
)

const (
	BackendSUMO   = config.BackendSUMO
	BackendMemory = config.BackendMemory
)

// LoadConfig loads YAML from disk, fills defaults and validates.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ReadConfig parses YAML without filling defaults or validating, for callers
// that override fields before calling Config.Resolve.
func ReadConfig(path string) (*Config, error) {
	return config.Read(path)
}

// DefaultConfig returns a config with every default filled in. Dataset.Path
// and, for the sumo backend, Simulation.SUMO.ConfigPath still need setting.
func DefaultConfig() *Config {
	return config.Default()
}
