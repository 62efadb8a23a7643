package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "converse", cfg.Name)
	assert.Equal(t, 10, cfg.Engine.SelectionCapFloor)
	assert.Equal(t, 5, cfg.Engine.SelectionCapSlack)
	assert.Equal(t, 0.5, cfg.Grounding.PessimisticBelow)
	assert.Equal(t, 0.7, cfg.Grounding.OptimisticFrom)
	assert.Empty(t, cfg.Grounding.AlwaysConfirm)
	assert.Equal(t, "converse.db", cfg.Store.Path)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: travel-agent
grounding:
  pessimistic_below: 0.4
  always_confirm: [request]
domain:
  library_path: travel.yaml
  watch_reload: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "travel-agent", cfg.Name)
	assert.Equal(t, 0.4, cfg.Grounding.PessimisticBelow)
	assert.Equal(t, 0.7, cfg.Grounding.OptimisticFrom, "untouched keys keep their defaults")
	assert.Equal(t, []string{"request"}, cfg.Grounding.AlwaysConfirm)
	assert.Equal(t, "travel.yaml", cfg.Domain.LibraryPath)
	assert.True(t, cfg.Domain.WatchReload)
	assert.Equal(t, 10, cfg.Engine.SelectionCapFloor)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: from-file.db\n"), 0644))

	t.Setenv("CONVERSE_STORE_PATH", "from-env.db")
	t.Setenv("CONVERSE_DOMAIN_LIBRARY", "env-domain.yaml")
	t.Setenv("CONVERSE_SELECTION_CAP_FLOOR", "25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Store.Path)
	assert.Equal(t, "env-domain.yaml", cfg.Domain.LibraryPath)
	assert.Equal(t, 25, cfg.Engine.SelectionCapFloor)

	t.Setenv("CONVERSE_SELECTION_CAP_FLOOR", "not a number")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Engine.SelectionCapFloor, "a bad override is ignored")
}

func TestValidateRejectsBrokenThresholds(t *testing.T) {
	write := func(body string) string {
		path := filepath.Join(t.TempDir(), "converse.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	_, err := Load(write("grounding:\n  pessimistic_below: 0.8\n  optimistic_from: 0.6\n"))
	assert.ErrorContains(t, err, "grounding thresholds")

	_, err = Load(write("engine:\n  selection_cap_floor: 0\n"))
	assert.ErrorContains(t, err, "selection_cap_floor")

	_, err = Load(write("hotels: [not, valid, shape"))
	assert.Error(t, err)
}
