package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toolrelay/toolrelay/internal/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath, logLevel, onboardForce = "", "", false
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestOnboard_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	out := run(t, "onboard", "--config", path)
	require.Contains(t, out, "Created config")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig().Server, cfg.Server)

	out = run(t, "onboard", "--config", path)
	require.Contains(t, out, "Config refreshed")
}

func TestTools_ListsBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	out := run(t, "tools", "--config", path)
	require.Contains(t, out, "lua_eval")
	require.Contains(t, out, "n8n_workflow")
	require.Contains(t, out, "Execute n8n workflows")
}

func TestTools_RespectsDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  disabled: [lua_eval]\n"), 0o600))

	out := run(t, "tools", "--config", path)
	require.NotContains(t, out, "lua_eval")
	require.Contains(t, out, "n8n_workflow")
}

func TestStatus_ShowsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("TOOLRELAY_SERVER_PORT", "4567")

	out := run(t, "status", "--config", path)
	require.Contains(t, out, "localhost:4567")
	require.Contains(t, out, "lua_eval, n8n_workflow")
}
