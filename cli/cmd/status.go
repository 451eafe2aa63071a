package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"penchy/cli/tui"
)

// NewStatusCommand builds `penchy status`, a live per-node view of a
// running control node's progress (spec.md's own client/server split
// has no built-in observability surface for an in-progress run, a gap a
// complete benchmarking harness supplements with a read-only poller).
func NewStatusCommand() *cobra.Command {
	var addr string
	var interval time.Duration

	c := &cobra.Command{
		Use:   "status",
		Short: "Show a live view of a running control node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			model := tui.NewStatusModel(addr, interval)
			program := tea.NewProgram(model, tea.WithContext(cmd.Context()))
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("run status TUI: %w", err)
			}
			return nil
		},
	}

	c.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "control node's RPC address (host:port)")
	c.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval")
	return c
}
