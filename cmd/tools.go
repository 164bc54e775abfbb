package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/toolrelay/toolrelay/internal/dependency"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := dependency.New(cfg, dependency.Options{LogOutput: io.Discard})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	reg := c.Registry()
	if reg.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tools registered.")
		return nil
	}
	for _, name := range reg.Names() {
		tool, _ := reg.Get(name)
		fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %s\n", name, tool.Description())
	}
	return nil
}
