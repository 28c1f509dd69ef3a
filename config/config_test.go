package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/resolve/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 1_000_000, cfg.Engine.IterLimit)
	assert.True(t, cfg.Engine.Inline)
	assert.Equal(t, "user", cfg.Engine.DefaultModule)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	t.Setenv("RESOLVE_LOG_LEVEL", "")
	t.Setenv("RESOLVE_TRACE_FILE", "")

	cfg, err := config.Parse([]byte(`
engine:
  iter_limit: 500
  inline: false
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Engine.IterLimit)
	assert.False(t, cfg.Engine.Inline)
	assert.Equal(t, "user", cfg.Engine.DefaultModule, "unset fields keep their default")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("RESOLVE_LOG_LEVEL", "")

	tests := []struct {
		name string
		text string
	}{
		{"negative limit", "engine: {iter_limit: -1}"},
		{"empty module", "engine: {default_module: ''}"},
		{"bad level", "logging: {level: loud}"},
		{"bad format", "logging: {format: xml}"},
		{"not yaml", "engine: [1"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := config.Parse([]byte(test.text))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RESOLVE_LOG_LEVEL", "error")
	t.Setenv("RESOLVE_TRACE_FILE", "trace.jsonl")

	cfg, err := config.Parse([]byte("logging: {level: debug}"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "trace.jsonl", cfg.Logging.TraceFile)
}

func TestSaveLoad(t *testing.T) {
	t.Setenv("RESOLVE_LOG_LEVEL", "")
	t.Setenv("RESOLVE_TRACE_FILE", "")
	path := filepath.Join(t.TempDir(), "resolve.yaml")

	cfg := config.Default()
	cfg.Engine.IterLimit = 42
	cfg.Engine.DefaultModule = "main"
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_Missing(t *testing.T) {
	t.Setenv("RESOLVE_LOG_LEVEL", "")
	t.Setenv("RESOLVE_TRACE_FILE", "")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_Unreadable(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(dir)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	logger, err := config.Logging{Level: "debug", Format: "json", TraceFile: path}.Build()
	require.NoError(t, err)
	logger.Debug("traced")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"traced"`)

	_, err = config.Logging{Level: "loud"}.Build()
	assert.Error(t, err)
}
