package iovsim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// writeDataset writes n rows one second apart; every third row is malicious.
func writeDataset(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,can_id,payload,attack_category,attack_type,is_malicious\n")
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			fmt.Fprintf(&b, "%d.0,0x%03X,DEADBEEF,spoofing,gear,1\n", 1000+i, 0x100+i)
			continue
		}
		fmt.Fprintf(&b, "%d.0,0x%03X,00112233,,normal,0\n", 1000+i, 0x100+i)
	}
	path := filepath.Join(t.TempDir(), "can.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func memoryConfig(t *testing.T, dataPath string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dataset.Path = dataPath
	cfg.Output.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.Simulation.Backend = BackendMemory
	cfg.Policy.Duration = 5
	cfg.Policy.SampleRate = 1
	cfg.Policy.SamplingInterval = 1
	cfg.Policy.Fast = true
	cfg.Log.Level = "debug"
	return cfg
}

func newTestRunner(t *testing.T, cfg *Config, opts ...RunnerOption) *Runner {
	t.Helper()
	opts = append([]RunnerOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	r, err := NewRunner(cfg, opts...)
	require.NoError(t, err)
	return r
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(b), "\n")
}
