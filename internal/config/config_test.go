package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, time.Duration(0), cfg.Server.FrameInterval)
	assert.Equal(t, "generated", cfg.Catalog.Source)
	assert.Equal(t, 10, cfg.Catalog.Roots)
	assert.Equal(t, 2, cfg.Catalog.Fanout)
	assert.Equal(t, []int{10, 20, 50, 100}, cfg.Grid.Sizes)
	assert.Equal(t, 10, cfg.Grid.InitialRows)
	assert.False(t, cfg.Grid.ReverseIndex)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadLayering(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  mode: debug
grid:
  sizes: [5, 10]
  initial_rows: 5
catalog:
  source: yaml
  path: region.yaml
log:
  level: debug
`), 0o644))

	t.Setenv("CASCADE_SERVER_PORT", "9100")
	t.Setenv("CASCADE_LOG_FORMAT", "json")

	cfg, err := Load(newFlags(t, "--config", path, "--port", "9200", "--reverse-index"))
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port, "flag wins over env and file")
	assert.Equal(t, "debug", cfg.Server.Mode, "file value kept")
	assert.Equal(t, "json", cfg.Log.Format, "env wins over default")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []int{5, 10}, cfg.Grid.Sizes)
	assert.Equal(t, 5, cfg.Grid.InitialRows)
	assert.True(t, cfg.Grid.ReverseIndex)
	assert.Equal(t, "yaml", cfg.Catalog.Source)
}

func TestLoadEnvOverFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cascade.yaml"), []byte("server:\n  port: 7000\n"), 0o644))

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port, "cascade.yaml in the working dir is picked up")

	t.Setenv("CASCADE_SERVER_PORT", "7100")
	cfg, err = Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load(newFlags(t, "--config", "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	_, err := Load(newFlags(t, "--rows", "7"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial_rows")

	_, err = Load(newFlags(t, "--catalog-source", "redis"))
	assert.Error(t, err)

	_, err = Load(newFlags(t, "--catalog-source", "yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.path")

	_, err = Load(newFlags(t, "--catalog-source", "postgres"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")

	_, err = Load(newFlags(t, "--port", "0"))
	assert.Error(t, err)

	_, err = Load(newFlags(t, "--log-level", "loud"))
	assert.Error(t, err)
}

func TestLogConfigApply(t *testing.T) {
	logger := log.New()
	require.NoError(t, LogConfig{Level: "debug", Format: "json"}.Apply(logger))
	assert.Equal(t, log.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)

	assert.Error(t, LogConfig{Level: "loud", Format: "text"}.Apply(logger))
}
