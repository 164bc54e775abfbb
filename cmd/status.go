package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toolrelay/toolrelay/internal/config"
	"github.com/toolrelay/toolrelay/internal/dependency"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective toolrelay configuration",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "toolrelay status")
	fmt.Fprintln(out)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗ (using defaults)"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Fprintf(out, "Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(out, "  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Listen:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "Server:    %s %s\n", cfg.Server.Name, cfg.Server.Version)
	fmt.Fprintf(out, "Metrics:   %s\n", mark(cfg.Server.Metrics))
	fmt.Fprintf(out, "Validate:  %s\n", mark(cfg.Tools.ValidateParams))
	fmt.Fprintf(out, "Sandbox:   %ds timeout\n", cfg.Tools.Sandbox.TimeoutSeconds)
	fmt.Fprintf(out, "Log:       %s (%s)\n\n", cfg.Log.Level, cfg.Log.Format)

	c, err := dependency.New(cfg, dependency.Options{LogOutput: io.Discard})
	if err != nil {
		fmt.Fprintf(out, "  (could not wire services: %v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Tools:     %s\n", strings.Join(c.Registry().Names(), ", "))
	if len(cfg.Tools.Disabled) > 0 {
		fmt.Fprintf(out, "Disabled:  %s\n", strings.Join(cfg.Tools.Disabled, ", "))
	}
	return nil
}

func mark(on bool) string {
	if on {
		return "✓"
	}
	return "✗"
}
