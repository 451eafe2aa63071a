package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"penchy/engine/client"
	"penchy/pkg/logger"
)

const clientLogFile = "penchy.log"

// NewRunCommand builds `penchy run`, the bootstrap contract's entrypoint
// (spec.md §6): the same binary is uploaded once to every node and
// invoked as `penchy run <job descriptor> <run config> <node identifier>`,
// writing its own log to penchy.log (spec.md §6's bootstrap contract).
func NewRunCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "run <job-descriptor> <run-config> <node-identifier>",
		Short: "Run this node's composition (invoked by the control node's bootstrap)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := os.OpenFile(clientLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // benchmark log, not a secret
			if err != nil {
				return fmt.Errorf("open %s: %w", clientLogFile, err)
			}
			defer logFile.Close()

			nodeLog := logger.NewLogger(&logger.Config{
				Level:      logger.InfoLevel,
				Output:     logFile,
				TimeFormat: "2006-01-02T15:04:05Z07:00",
			})
			ctx := logger.ContextWithLogger(cmd.Context(), nodeLog)

			jobPath, configPath, nodeHost := args[0], args[1], args[2]
			if err := client.Run(ctx, jobPath, configPath, nodeHost); err != nil {
				nodeLog.Error("run failed", "error", err)
				return err
			}
			return nil
		},
	}
	return c
}
