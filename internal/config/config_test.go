package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/worldsim/worldsim/internal/geom"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "world.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(write(t, `
[world]
max_x = 100
max_y = 100
tick_rate = "20ms"
sim_ticks = 30

[database]
enabled = true
autosave_ticks = 10

[logging]
level = "debug"
`))
	require.NoError(t, err)
	require.Equal(t, geom.R(0, 0, 100, 100), cfg.World.Bounds())
	require.Equal(t, 20*time.Millisecond, cfg.World.TickRate)
	require.Equal(t, 30, cfg.World.SimTicks)
	require.Equal(t, 1024, cfg.World.QuadCapacity, "default kept")
	require.True(t, cfg.Database.Enabled)
	require.Equal(t, 10, cfg.Database.AutosaveTicks)
	require.Equal(t, 3, cfg.Database.KeepSnapshots)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
	require.Equal(t, "data/yaml/templates", cfg.Data.TemplateDir)
}

func TestLoadRejects(t *testing.T) {
	for name, body := range map[string]string{
		"empty bounds": "[world]\nmax_x = -1\n",
		"zero tick":    "[world]\ntick_rate = \"0s\"\n",
		"capacity":     "[world]\nquad_capacity = 0\n",
		"profile":      "[profile]\nmode = \"block\"\n",
		"syntax":       "[world\n",
	} {
		_, err := Load(write(t, body))
		require.Error(t, err, name)
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "")
	require.Equal(t, "config/world.toml", Path("config/world.toml"))
	t.Setenv(EnvPath, "/etc/worldsim.toml")
	require.Equal(t, "/etc/worldsim.toml", Path("config/world.toml"))
}
