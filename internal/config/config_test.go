package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/aspectjobs/internal/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Scheduler.DetectCycles)
	assert.Zero(t, cfg.Pool.ThreadCount)
}

func TestLoadFromFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	if diff := cmp.Diff(config.DefaultConfig(), cfg); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	doc := `{"pool": {"threadCount": 6}, "log": {"level": "debug"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	want := config.DefaultConfig()
	want.Pool.ThreadCount = 6
	want.Log.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile_RejectsUnknownMembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pool": {"workers": 2}}`), 0o600))

	_, err := config.LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := config.DefaultConfig()
	cfg.Trace.Enabled = true
	cfg.EventBus.Capacity = 128
	require.NoError(t, cfg.SaveToFile(path))

	got, err := config.LoadFromFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := config.DefaultConfig()
	err := cfg.ApplyEnv(map[string]string{
		"ASPECTJOBS_THREAD_COUNT":  "3",
		"ASPECTJOBS_DETECT_CYCLES": "false",
		"ASPECTJOBS_LOG_FORMAT":    "json",
		"ASPECTJOBS_TRACE_ADDR":    ":9000",
		"THREAD_COUNT":             "99",
	})
	require.NoError(t, err)

	want := config.DefaultConfig()
	want.Pool.ThreadCount = 3
	want.Scheduler.DetectCycles = false
	want.Log.Format = "json"
	want.Trace.Addr = ":9000"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	cfg := config.DefaultConfig()
	err := cfg.ApplyEnv(map[string]string{"ASPECTJOBS_THREAD_COUNT": "lots"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*config.Config){
		"negative threads":  func(c *config.Config) { c.Pool.ThreadCount = -1 },
		"zero frames":       func(c *config.Config) { c.Scheduler.Frames = 0 },
		"bad level":         func(c *config.Config) { c.Log.Level = "loud" },
		"bad format":        func(c *config.Config) { c.Log.Format = "xml" },
		"negative capacity": func(c *config.Config) { c.EventBus.Capacity = -5 },
		"trace without addr": func(c *config.Config) {
			c.Trace.Enabled = true
			c.Trace.Addr = ""
		},
		"trace without buffer": func(c *config.Config) {
			c.Trace.Enabled = true
			c.Trace.ClientBuffer = 0
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
