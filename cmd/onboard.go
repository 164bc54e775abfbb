package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolrelay/toolrelay/internal/config"
)

var onboardForce bool

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default configuration file",
	RunE:  runOnboard,
}

func init() {
	onboardCmd.Flags().BoolVarP(&onboardForce, "force", "f", false, "Overwrite an existing config with defaults")
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfgPath); err == nil && !onboardForce {
		// Refresh in place: keeps existing values and adds any new fields.
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Created config at %s\n", cfgPath)
	}

	fmt.Fprintln(out, "\ntoolrelay is ready!")
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Start the server: toolrelay serve")
	fmt.Fprintln(out, "  2. Or expose the tools to an MCP client: toolrelay mcp")
	return nil
}
