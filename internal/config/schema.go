// Package config defines the configuration schema for toolrelay.
//
// JSON and YAML keys use camelCase. Every field can also be set through a
// TOOLRELAY_* environment variable, which wins over the file.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Config is the root configuration object.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`
	Tools  ToolsConfig  `json:"tools" yaml:"tools"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

// ServerConfig configures the WebSocket listener.
//
// Port is the preferred port. When it is taken the next free port above it is
// used; 0 lets the OS pick.
type ServerConfig struct {
	Host            string `json:"host" yaml:"host" env:"TOOLRELAY_SERVER_HOST"`
	Port            int    `json:"port" yaml:"port" env:"TOOLRELAY_SERVER_PORT"`
	Name            string `json:"name" yaml:"name" env:"TOOLRELAY_SERVER_NAME"`
	Version         string `json:"version" yaml:"version" env:"TOOLRELAY_SERVER_VERSION"`
	MaxMessageBytes int64  `json:"maxMessageBytes" yaml:"maxMessageBytes" env:"TOOLRELAY_SERVER_MAX_MESSAGE_BYTES"`
	Metrics         bool   `json:"metrics" yaml:"metrics" env:"TOOLRELAY_SERVER_METRICS"`
}

// SandboxConfig configures the Lua execution context.
type SandboxConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds" yaml:"timeoutSeconds" env:"TOOLRELAY_SANDBOX_TIMEOUT_SECONDS"`
}

// Timeout returns the per-evaluation budget. Zero or negative disables it.
func (c SandboxConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ToolsConfig configures the tool registry and invoker. Disabled lists built-in
// tool names that are not registered.
type ToolsConfig struct {
	ValidateParams bool          `json:"validateParams" yaml:"validateParams" env:"TOOLRELAY_TOOLS_VALIDATE_PARAMS"`
	Sandbox        SandboxConfig `json:"sandbox" yaml:"sandbox"`
	Disabled       []string      `json:"disabled" yaml:"disabled" env:"TOOLRELAY_TOOLS_DISABLED" envSeparator:","`
}

// IsDisabled reports whether the tool called name is switched off.
func (c ToolsConfig) IsDisabled(name string) bool {
	return slices.Contains(c.Disabled, name)
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"TOOLRELAY_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"TOOLRELAY_LOG_FORMAT"`
}

// SlogLevel maps Level onto slog. Validate rejects anything it cannot map.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.Level)
	}
	return lvl, nil
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            3000,
			Name:            "toolrelay",
			Version:         "1.0.0",
			MaxMessageBytes: 1 << 20,
			Metrics:         true,
		},
		Tools: ToolsConfig{
			Sandbox:  SandboxConfig{TimeoutSeconds: 10},
			Disabled: []string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 0..65535", c.Server.Port)
	}
	if c.Server.MaxMessageBytes < 0 {
		return fmt.Errorf("server.maxMessageBytes must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
