package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Server.Port != def.Server.Port || cfg.Server.Host != def.Server.Host {
		t.Errorf("expected default %s:%d, got %s:%d", def.Server.Host, def.Server.Port, cfg.Server.Host, cfg.Server.Port)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"server": map[string]any{
			"port": 4100,
		},
		"tools": map[string]any{
			"validateParams": true,
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("expected port 4100, got %d", cfg.Server.Port)
	}
	if !cfg.Tools.ValidateParams {
		t.Error("expected validateParams true")
	}
	// Fields absent from the file keep their defaults.
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
	if cfg.Tools.Sandbox.TimeoutSeconds != 10 {
		t.Errorf("expected default sandbox timeout 10, got %d", cfg.Tools.Sandbox.TimeoutSeconds)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  host: 0.0.0.0\n  port: 0\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 0 {
		t.Errorf("expected 0.0.0.0:0, got %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for invalid JSON (falls back to default), got: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"server": map[string]any{"port": 4100},
	})
	t.Setenv("TOOLRELAY_SERVER_PORT", "5200")
	t.Setenv("TOOLRELAY_TOOLS_DISABLED", "lua_eval,n8n_workflow")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5200 {
		t.Errorf("expected env port 5200, got %d", cfg.Server.Port)
	}
	if !cfg.Tools.IsDisabled("lua_eval") || !cfg.Tools.IsDisabled("n8n_workflow") {
		t.Errorf("expected both tools disabled, got %v", cfg.Tools.Disabled)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("TOOLRELAY_SERVER_PORT", "not-a-number")

	if _, err := Load("/nonexistent/path/config.json"); err == nil {
		t.Fatal("expected error for unparseable env value")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Server.Port = 4242
			cfg.Tools.Disabled = []string{"lua_eval"}

			if err := Save(&cfg, path); err != nil {
				t.Fatalf("save: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Server.Port != 4242 {
				t.Errorf("expected port 4242, got %d", loaded.Server.Port)
			}
			if !loaded.Tools.IsDisabled("lua_eval") {
				t.Errorf("expected lua_eval disabled, got %v", loaded.Tools.Disabled)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "negative port", mutate: func(c *Config) { c.Server.Port = -1 }, wantErr: true},
		{name: "warn level", mutate: func(c *Config) { c.Log.Level = "warn" }},
		{name: "unknown level", mutate: func(c *Config) { c.Log.Level = "chatty" }, wantErr: true},
		{name: "json format", mutate: func(c *Config) { c.Log.Format = "json" }},
		{name: "unknown format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSandboxTimeout(t *testing.T) {
	if got := (SandboxConfig{TimeoutSeconds: 3}).Timeout(); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
	if got := (SandboxConfig{}).Timeout(); got != 0 {
		t.Errorf("expected no timeout, got %v", got)
	}
}
