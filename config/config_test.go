package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `engine:
  workers: 4
  memory_mb: 24000
  task_timeout_s: 1800
  data_root: "/srv/gridmill/data"
  scripts_dir: "/srv/gridmill/scripts"
  interpreter: "/usr/bin/python3"
pipeline:
  rules_dir: "/srv/gridmill/rules"
  constraint_horizon_year: 2026
metrics:
  sinks:
    - type: "prometheus"
      conf:
        listen: ":9105"
logging:
  level: "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 24000, cfg.Engine.MemoryMB)
	assert.Equal(t, 1800, cfg.Engine.TaskTimeoutS)
	assert.Equal(t, 1800*time.Second, cfg.Engine.TaskTimeout())
	assert.Equal(t, "/srv/gridmill/data", cfg.Engine.DataRoot)
	assert.Equal(t, "/srv/gridmill/scripts", cfg.Engine.ScriptsDir)
	assert.Equal(t, "/usr/bin/python3", cfg.Engine.Interpreter)
	assert.Equal(t, "/srv/gridmill/rules", cfg.Pipeline.RulesDir)
	assert.Equal(t, 2026, cfg.Pipeline.ConstraintHorizonYear)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "prometheus", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, ":9105", cfg.Metrics.Sinks[0].Conf["listen"])
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"engine": {"data_root": "/tmp/data"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Positive(t, cfg.Engine.Workers)
	assert.Equal(t, 32000, cfg.Engine.MemoryMB)
	assert.Zero(t, cfg.Engine.TaskTimeoutS)
	assert.Equal(t, "scripts", cfg.Engine.ScriptsDir)
	assert.Empty(t, cfg.Engine.Interpreter)
	assert.Zero(t, cfg.Pipeline.ConstraintHorizonYear)
	assert.Empty(t, cfg.Metrics.Sinks)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GM_ENGINE__WORKERS", "9")
	t.Setenv("GM_LOGGING__LEVEL", "warn")

	path := writeConfig(t, "config.yaml", `engine:
  workers: 2
  data_root: "/tmp/data"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Engine.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		file string
		data string
	}{
		{"unsupported extension", "config.toml", `anything = true`},
		{"negative workers", "config.yaml", "engine:\n  workers: -1\n"},
		{"negative timeout", "config.yaml", "engine:\n  task_timeout_s: -5\n"},
		{"negative horizon", "config.yaml", "pipeline:\n  constraint_horizon_year: -2\n"},
		{"unknown log level", "config.yaml", "logging:\n  level: chatty\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.file, tc.data)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
