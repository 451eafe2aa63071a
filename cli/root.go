// Package cli assembles PenchY's command surface on top of
// github.com/spf13/cobra, grounded on the teacher's cli/root.go: a root
// command with persistent global flags, a PersistentPreRunE that wires
// logging before any subcommand runs, and subcommands
// registered from their own packages under cli/cmd.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"penchy/cli/cmd"
	"penchy/pkg/logger"
)

// RootCmd builds PenchY's root cobra command.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "penchy",
		Short: "PenchY distributed JVM benchmarking harness",
		Long: `PenchY deploys a JVM benchmarking job across a set of remote nodes,
collects each node's results over its own RPC surface, and runs a
server-side aggregation pipeline once every node has reported back.`,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return setupGlobalState(c)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		cmd.NewServeCommand(),
		cmd.NewRunCommand(),
		cmd.NewStatusCommand(),
	)
	return root
}

func setupGlobalState(c *cobra.Command) error {
	verbose, err := c.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("read verbose flag: %w", err)
	}
	level := logger.InfoLevel
	if verbose {
		level = logger.DebugLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      level,
		Output:     c.OutOrStdout(),
		TimeFormat: "15:04:05",
	})
	c.SetContext(logger.ContextWithLogger(c.Context(), log))
	return nil
}
