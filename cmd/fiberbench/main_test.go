package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	runCmd.Flags().VisitAll(reset)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRun_Workload(t *testing.T) {
	out := execute(t, "run", "--log-level", "disabled", "-t", "2", "-n", "20", "--yields", "3", "--producers", "2")

	assert.Contains(t, out, "completed:   20\n")
	assert.Contains(t, out, "requeued:    60\n")
	assert.Contains(t, out, "dispatched:  80\n")
	assert.Contains(t, out, "failed:      0\n")
}

func TestRun_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bench:
  threads: 3
  pin: true
  wake: true
  poll: 1ms
fiber:
  stack_size: 65536
`), 0o644))

	out := execute(t, "run", "-c", path, "--log-level", "disabled", "-n", "12", "--yields", "1")
	assert.Contains(t, out, "completed:   12\n")
	assert.Equal(t, 3, threadsVar.Get())
	assert.True(t, pinVar.Get())

	out = execute(t, "config", "dump", "-c", path, "--log-level", "disabled")
	var dump map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &dump))
	assert.Equal(t, 65536, dump["fiber.stack_size"])
	assert.Equal(t, true, dump["bench.wake"])
}

func TestParseLevel(t *testing.T) {
	for in, ok := range map[string]bool{
		"trace": true, "DEBUG": true, "info": true, "warning": true,
		"err": true, "error": true, "crit": true, "disabled": true,
		"verbose": false,
	} {
		_, err := parseLevel(in)
		assert.Equal(t, ok, err == nil, in)
	}
}
