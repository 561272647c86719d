package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/adapters/dataset"
	"github.com/hrvrbhanu01/connected-vehicle-security/internal/app/dataprep"
	"github.com/hrvrbhanu01/connected-vehicle-security/pkg/iovsim"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "recover":
		err = recoverCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("iov-inject %s: %v", cmd, err)
	}
}

// runFlags holds the command line overrides of run and validate. Only flags
// the user actually set replace config file values.
type runFlags struct {
	fs *flag.FlagSet

	config     string
	input      string
	simConfig  string
	output     string
	backend    string
	metrics    string
	duration   float64
	sampleRate float64
	step       float64
	interval   float64
	seed       int64
	fast       bool
}

func newRunFlags(name string) *runFlags {
	f := &runFlags{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	f.fs.StringVar(&f.config, "config", "", "Optional YAML configuration file")
	f.fs.StringVar(&f.input, "input", "", "Labeled CAN dataset (CSV, optionally .gz)")
	f.fs.StringVar(&f.simConfig, "sim-config", "", "SUMO configuration file (.sumocfg)")
	f.fs.StringVar(&f.output, "output", "logs", "Directory that receives the run directory")
	f.fs.StringVar(&f.backend, "backend", iovsim.BackendSUMO, "Simulation backend: sumo or memory")
	f.fs.StringVar(&f.metrics, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.fs.Float64Var(&f.duration, "duration", 3600, "Simulated seconds to run")
	f.fs.Float64Var(&f.sampleRate, "sample-rate", 0.01, "Fraction of dataset records to inject")
	f.fs.Float64Var(&f.step, "step", 0.1, "Simulation step length in seconds")
	f.fs.Float64Var(&f.interval, "interval", 10, "Seconds between traffic snapshots")
	f.fs.Int64Var(&f.seed, "seed", 42, "Random seed for sampling and routes")
	f.fs.BoolVar(&f.fast, "fast", false, "Do not throttle the step loop")
	return f
}

// resolve loads the config file (or defaults) and applies the flags that
// were set explicitly.
func (f *runFlags) resolve(args []string) (*iovsim.Config, error) {
	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := iovsim.DefaultConfig()
	if f.config != "" {
		raw, err := iovsim.ReadConfig(f.config)
		if err != nil {
			return nil, err
		}
		cfg = raw
	}

	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "input":
			cfg.Dataset.Path = f.input
		case "sim-config":
			cfg.Simulation.SUMO.ConfigPath = f.simConfig
		case "output":
			cfg.Output.Dir = f.output
		case "backend":
			cfg.Simulation.Backend = f.backend
		case "metrics-addr":
			cfg.Metrics.Addr = f.metrics
		case "duration":
			cfg.Policy.Duration = f.duration
		case "sample-rate":
			cfg.Policy.SampleRate = f.sampleRate
		case "step":
			cfg.Policy.StepLength = f.step
		case "interval":
			cfg.Policy.SamplingInterval = f.interval
		case "seed":
			cfg.Policy.Seed = f.seed
		case "fast":
			cfg.Policy.Fast = f.fast
		}
	})

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCommand(args []string) error {
	cfg, err := newRunFlags("run").resolve(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := iovsim.NewRunner(cfg)
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx)
	if res != nil {
		s := res.Summary
		fmt.Printf("run %s %s: %d actors injected (%d malicious, %d skipped), %d snapshots, t=%.1f\n",
			s.RunID, s.Status, s.TotalActorsInjected, s.MaliciousActorsInjected,
			s.SkippedInjections, s.SnapshotsWritten, s.FinalSimTime)
		fmt.Printf("outputs in %s\n", res.RunDir)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}

func validateCommand(args []string) error {
	cfg, err := newRunFlags("validate").resolve(args)
	if err != nil {
		return err
	}

	data, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	prep, err := dataprep.Prepare(data.Records, cfg.Policy.Duration, cfg.Policy.SampleRate, cfg.Policy.Seed)
	if err != nil {
		return err
	}

	fmt.Printf("dataset %s: %d rows, %d usable, %d skipped\n",
		cfg.Dataset.Path, data.Rows, len(data.Records), len(data.Skipped))
	for i, s := range data.Skipped {
		if i == 5 {
			fmt.Printf("  ... %d more\n", len(data.Skipped)-i)
			break
		}
		fmt.Printf("  skipped %v\n", s)
	}
	fmt.Printf("schedule: %d records over %.0fs (scale factor %.4g)\n",
		len(prep.Records), cfg.Policy.Duration, prep.Scale.Factor)
	fmt.Printf("config looks good, backend %s\n", cfg.Simulation.Backend)
	return nil
}

func recoverCommand(args []string) error {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: iov-inject recover <run_dir>")
	}

	s, err := iovsim.Recover(fs.Arg(0), time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("recovered %s: %d actors injected (%d malicious), last injection at t=%.1f\n",
		s.RunID, s.TotalActorsInjected, s.MaliciousActorsInjected, s.FinalSimTime)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []string{
	"iov_sim_time_seconds",
	"iov_actors_injected_total",
	"iov_malicious_injected_total",
	"iov_injections_skipped_total",
	"iov_live_actors",
	"iov_journal_size_bytes",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseMetrics(bufio.NewScanner(resp.Body))
	if err != nil {
		return err
	}

	fmt.Printf("[%s] t=%.1f injected=%.0f malicious=%.0f skipped=%.0f live=%.0f journal_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["iov_sim_time_seconds"],
		values["iov_actors_injected_total"],
		values["iov_malicious_injected_total"],
		values["iov_injections_skipped_total"],
		values["iov_live_actors"],
		values["iov_journal_size_bytes"],
	)
	return nil
}

func parseMetrics(scanner *bufio.Scanner) (map[string]float64, error) {
	values := make(map[string]float64, len(statsTargets))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range statsTargets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	return values, scanner.Err()
}

func printUsage() {
	fmt.Printf(`iov-inject: replay labeled CAN traffic as vehicles in a traffic simulation

Usage:
  iov-inject <command> [flags]

Commands:
  run        Inject a dataset into SUMO (or the in-memory backend) and record the run
  validate   Load the config and dataset and print the injection schedule
  recover    Rebuild anomalies and summary of a killed run from its journal
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  iov-inject run -input can.csv -sim-config highway.sumocfg -duration 600 -fast
  iov-inject run -config ./data/iov.yaml -backend memory
  iov-inject validate -config ./data/iov.yaml
  iov-inject recover logs/simulation_20260301_120000
  iov-inject stats -url http://localhost:9100/metrics -interval 1s
`)
}
