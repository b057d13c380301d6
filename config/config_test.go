package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoFeedersReturnsDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestTomlFeederOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
tick_duration = "20ms"
middleware_address = "localhost:9000"
`), 0o644))

	cfg, err := Load(TomlFeeder{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, cfg.TickDuration)
	assert.Equal(t, "localhost:9000", cfg.MiddlewareAddress)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().DefaultTaskBudget, cfg.DefaultTaskBudget)
}

func TestTomlFeederWithMissingPathIsANoOp(t *testing.T) {
	cfg, err := Load(TomlFeeder{Path: filepath.Join(t.TempDir(), "missing.toml")})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestYamlFeederOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kv_store_path: /var/lib/fleet.db\nkv_store_sync_on_write: true\n"), 0o644))

	cfg, err := Load(YamlFeeder{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/fleet.db", cfg.KVStorePath)
	assert.True(t, cfg.KVStoreSyncOnWrite)
}

func TestLaterFeedersOverrideEarlierOnes(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "runtime.toml")
	yamlPath := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`middleware_address = "from-toml:1"`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("middleware_address: from-yaml:2\n"), 0o644))

	cfg, err := Load(TomlFeeder{Path: tomlPath}, YamlFeeder{Path: yamlPath})
	require.NoError(t, err)
	assert.Equal(t, "from-yaml:2", cfg.MiddlewareAddress)
}

func TestEnvFeederOverridesStringAndBoolFields(t *testing.T) {
	t.Setenv("FLEET_MIDDLEWARE_ADDRESS", "env-host:7000")
	t.Setenv("FLEET_KV_STORE_SYNC_ON_WRITE", "true")

	cfg, err := Load(EnvFeeder{Prefix: "FLEET_"})
	require.NoError(t, err)
	assert.Equal(t, "env-host:7000", cfg.MiddlewareAddress)
	assert.True(t, cfg.KVStoreSyncOnWrite)
}

func TestEnvFeederIgnoresUnsetVariables(t *testing.T) {
	cfg, err := Load(EnvFeeder{Prefix: "FLEET_NONEXISTENT_PREFIX_"})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDiffRuntimeConfigReportsOnlyChangedFields(t *testing.T) {
	old := Default()
	updated := Default()
	updated.MiddlewareAddress = "changed:1"

	diffs := DiffRuntimeConfig(old, updated)
	require.Len(t, diffs, 1)
	assert.Equal(t, "MiddlewareAddress", diffs[0].Field)
	assert.Equal(t, "changed:1", diffs[0].New)
}

func TestDiffRuntimeConfigReportsNothingWhenEqual(t *testing.T) {
	cfg := Default()
	diffs := DiffRuntimeConfig(cfg, cfg)
	assert.Empty(t, diffs)
}
